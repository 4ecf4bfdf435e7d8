// Package client is a Go client for the car rental HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carrental/internal/api"
	"carrental/internal/catalog"
	"carrental/internal/customer"
	"carrental/internal/eventstore"
	"carrental/internal/rental"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy of c that authenticates as the token's holder.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Register(ctx context.Context, req customer.RegisterRequest) (*customer.Customer, error) {
	var out customer.Customer
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and returns a client bound to the new token.
func (c *Client) Login(ctx context.Context, email, password string) (*Client, *customer.Session, error) {
	var session customer.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", customer.LoginRequest{Email: email, Password: password}, &session); err != nil {
		return nil, nil, err
	}
	return c.WithToken(session.Token), &session, nil
}

func (c *Client) ListCars(ctx context.Context, filter catalog.CarFilter) ([]*catalog.Car, error) {
	q := url.Values{}
	if filter.Available != nil {
		q.Set("available", strconv.FormatBool(*filter.Available))
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}

	path := "/api/cars"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var cars []*catalog.Car
	if err := c.do(ctx, http.MethodGet, path, nil, &cars); err != nil {
		return nil, err
	}
	return cars, nil
}

func (c *Client) GetCar(ctx context.Context, id int64) (*catalog.Car, error) {
	var car catalog.Car
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/cars/%d", id), nil, &car); err != nil {
		return nil, err
	}
	return &car, nil
}

// CreateCar needs an admin token.
func (c *Client) CreateCar(ctx context.Context, car catalog.NewCar) (*catalog.Car, error) {
	var out catalog.Car
	if err := c.do(ctx, http.MethodPost, "/api/cars", car, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Rent(ctx context.Context, req rental.RentRequest) (*rental.Rental, error) {
	var out rental.Rental
	if err := c.do(ctx, http.MethodPost, "/api/rentals", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Return(ctx context.Context, rentalID int64) (*rental.Rental, error) {
	var out rental.Rental
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/rentals/%d/return", rentalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Rentals(ctx context.Context, status rental.Status) ([]*rental.Rental, error) {
	path := "/api/rentals"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}

	var out []*rental.Rental
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, rentalID int64) ([]eventstore.Event, error) {
	var out []eventstore.Event
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/rentals/%d/events", rentalID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code, apiErr.Message = payload.Code, payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
