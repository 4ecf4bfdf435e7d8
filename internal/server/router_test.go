package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"carrental/internal/auth"
	"carrental/internal/catalog"
	"carrental/internal/customer"
	"carrental/internal/eventstore"
	"carrental/internal/rental"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var carCols = []string{"id", "brand", "model", "year", "price_per_day", "image_url", "category", "available", "created_at"}

type fixture struct {
	handler http.Handler
	mock    sqlmock.Sqlmock
	user    string
	admin   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "carrental", time.Hour)
	customers := customer.NewStore(db)
	events := eventstore.New(db)
	rentals, err := rental.NewService(rental.NewUnitOfWork(db, events), rental.NewLedger(db), events, logger)
	require.NoError(t, err)

	h := NewRouter(Deps{
		Logger:    logger,
		DB:        db,
		Tokens:    tokens,
		Cars:      catalog.NewStore(db),
		Customers: customers,
		Accounts:  customer.NewService(customers, tokens, customer.RateLimit{}, logger),
		Rentals:   rentals,
	})

	user, _, err := tokens.Issue(auth.Identity{CustomerID: 2})
	require.NoError(t, err)
	admin, _, err := tokens.Issue(auth.Identity{CustomerID: 1, IsAdmin: true})
	require.NoError(t, err)

	return &fixture{handler: h, mock: mock, user: user, admin: admin}
}

func (f *fixture) do(method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectPing()
	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.mock.ExpectPing().WillReturnError(errors.New("down"))
	rec = f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPublicCatalog(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM cars WHERE available = $1")).
		WithArgs(true, 20, 0).
		WillReturnRows(sqlmock.NewRows(carCols).AddRow(1, "Toyota", "Camry", 2023, "45.00", nil, "Sedan", true, time.Now()))

	rec := f.do(http.MethodGet, "/api/cars?available=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Camry")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAccessControl(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		token  func(*fixture) string
		want   int
	}{
		{"rentals need a token", http.MethodGet, "/api/rentals", func(*fixture) string { return "" }, http.StatusUnauthorized},
		{"rent needs a token", http.MethodPost, "/api/rentals", func(*fixture) string { return "" }, http.StatusUnauthorized},
		{"return needs a token", http.MethodPut, "/api/rentals/1/return", func(*fixture) string { return "" }, http.StatusUnauthorized},
		{"create car needs a token", http.MethodPost, "/api/cars", func(*fixture) string { return "" }, http.StatusUnauthorized},
		{"create car needs admin", http.MethodPost, "/api/cars", func(f *fixture) string { return f.user }, http.StatusForbidden},
		{"update car needs admin", http.MethodPut, "/api/cars/1", func(f *fixture) string { return f.user }, http.StatusForbidden},
		{"delete car needs admin", http.MethodDelete, "/api/cars/1", func(f *fixture) string { return f.user }, http.StatusForbidden},
		{"customer list needs admin", http.MethodGet, "/api/customers", func(f *fixture) string { return f.user }, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/api/trucks", func(*fixture) string { return "" }, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/cars", func(*fixture) string { return "" }, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(tt.method, tt.target, "{}", tt.token(f))
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			assert.NoError(t, f.mock.ExpectationsWereMet(), "no query runs before authorization")
		})
	}
}

func TestAdminCreatesCar(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cars")).
		WithArgs("Tesla", "Model 3", nil, 85.0, nil, "Electric").
		WillReturnRows(sqlmock.NewRows(carCols).AddRow(7, "Tesla", "Model 3", nil, "85.00", nil, "Electric", true, time.Now()))

	rec := f.do(http.MethodPost, "/api/cars", `{"brand":"Tesla","model":"Model 3","price_per_day":85,"category":"Electric"}`, f.admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":true`)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRentThroughRouter(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("UPDATE cars SET available = false")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(carCols))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.mock.ExpectRollback()

	rec := f.do(http.MethodPost, "/api/rentals", `{"car_id":1,"rental_date":"2024-01-15","expected_return_date":"2024-01-20"}`, f.user)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "CAR_NOT_AVAILABLE")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
