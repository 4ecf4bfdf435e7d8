package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"carrental/internal/apperr"
	"carrental/internal/database"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from the request body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation(apperr.CodeInvalidBody, "request body is required")
		}
		return apperr.Validation(apperr.CodeInvalidBody, "invalid JSON body: "+err.Error())
	}
	return nil
}

// PathID parses the positive integer URL parameter name.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(apperr.CodeInvalidID, "valid "+name+" is required")
	}
	return id, nil
}

// QueryPage reads limit and offset from the query string.
func QueryPage(r *http.Request) (database.Page, error) {
	var page database.Page
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return page, apperr.Validation(apperr.CodeInvalidField, "limit must be a non-negative integer")
		}
		page.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return page, apperr.Validation(apperr.CodeInvalidField, "offset must be a non-negative integer")
		}
		page.Offset = offset
	}

	return page.Normalize(), nil
}

// QueryBool reads an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation(apperr.CodeInvalidField, name+" must be true or false")
	}
	return &b, nil
}

// QueryInt64 reads an optional positive integer query parameter.
func QueryInt64(r *http.Request, name string) (*int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil, apperr.Validation(apperr.CodeInvalidField, "invalid "+name+" parameter")
	}
	return &n, nil
}
