package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"carrental/internal/api"
	"carrental/internal/catalog"
	"carrental/internal/rental"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret1" {
			api.WriteJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "invalid credentials", Code: "INVALID_CREDENTIALS"})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"token": "tok-2", "customer": map[string]any{"id": 2, "email": req.Email}})
	})
	r.Get("/api/cars", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("available"))
		api.WriteJSON(w, http.StatusOK, []catalog.Car{{ID: 1, Brand: "Toyota", Model: "Camry", PricePerDay: 45, Available: true}})
	})
	r.Post("/api/rentals", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			api.WriteJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "missing bearer token", Code: "UNAUTHORIZED"})
			return
		}
		var req rental.RentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		api.WriteJSON(w, http.StatusCreated, rental.Rental{ID: 5, CustomerID: 2, CarID: req.CarID, TotalPrice: 225, Status: rental.StatusActive})
	})
	r.Put("/api/rentals/{id}/return", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusConflict, api.ErrorResponse{Error: "rental is already completed", Code: "INVALID_RENTAL_STATUS"})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	c := New(newTestServer(t).URL + "/")

	available := true
	cars, err := c.ListCars(ctx, catalog.CarFilter{Available: &available})
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "Camry", cars[0].Model)

	_, err = c.Rent(ctx, rental.RentRequest{CarID: 1, RentalDate: "2024-01-15", ExpectedReturnDate: "2024-01-20"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, _, err = c.Login(ctx, "john.smith@email.com", "wrong")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)

	authed, session, err := c.Login(ctx, "john.smith@email.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), session.Customer.ID)

	r, err := authed.Rent(ctx, rental.RentRequest{CarID: 1, RentalDate: "2024-01-15", ExpectedReturnDate: "2024-01-20"})
	require.NoError(t, err)
	assert.Equal(t, 225.0, r.TotalPrice)

	_, err = authed.Return(ctx, r.ID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "INVALID_RENTAL_STATUS")
}
