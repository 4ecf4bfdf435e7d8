package customer

import (
	"context"
	"sync"
	"testing"
	"time"

	"carrental/internal/apperr"
	"carrental/internal/auth"
	"carrental/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryStore is an in-memory Store keyed by lowercased email.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*Customer
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: make(map[int64]*Customer)}
}

func (m *memoryStore) FindByEmail(_ context.Context, email string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Email == NormalizeEmail(email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Insert(_ context.Context, n NewCustomer) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Email == NormalizeEmail(n.Email) {
			return nil, apperr.Conflict(apperr.CodeEmailExists, "email already exists")
		}
	}
	m.nextID++
	c := &Customer{ID: m.nextID, Name: n.Name, Email: NormalizeEmail(n.Email), PasswordHash: n.PasswordHash, Phone: n.Phone, IsAdmin: n.IsAdmin, CreatedAt: time.Now()}
	m.byID[c.ID] = c
	out := *c
	out.PasswordHash = ""
	return &out, nil
}

func (m *memoryStore) List(context.Context, CustomerFilter, database.Page) ([]*Customer, error) {
	return nil, nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, notFound()
	}
	out := *c
	out.PasswordHash = ""
	return &out, nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(store Store, limit RateLimit) (Service, *auth.TokenManager) {
	tokens := auth.NewTokenManager(testSecret, "carrental", time.Hour)
	return NewService(store, tokens, limit, zap.NewNop()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, tokens := newTestService(store, RateLimit{})

	phone := " 555-0101 "
	c, err := svc.Register(ctx, RegisterRequest{Name: " John Smith ", Email: "John.Smith@Email.com", Password: "secret1", Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "John Smith", c.Name)
	assert.Equal(t, "john.smith@email.com", c.Email)
	assert.Equal(t, "555-0101", *c.Phone)
	assert.False(t, c.IsAdmin)
	assert.Empty(t, c.PasswordHash)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Other", Email: "JOHN.SMITH@email.com", Password: "secret1"})
	assert.Equal(t, apperr.CodeEmailExists, apperr.CodeOf(err))

	session, err := svc.Login(ctx, LoginRequest{Email: "john.smith@EMAIL.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, session.Customer.ID)
	assert.Empty(t, session.Customer.PasswordHash)

	id, err := tokens.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, c.ID, id.CustomerID)
	assert.False(t, id.IsAdmin)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(newMemoryStore(), RateLimit{})

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@b.co", Password: "secret1"}},
		{"missing email", RegisterRequest{Name: "A", Password: "secret1"}},
		{"missing password", RegisterRequest{Name: "A", Email: "a@b.co"}},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "secret1"}},
		{"short password", RegisterRequest{Name: "A", Email: "a@b.co", Password: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemoryStore(), RateLimit{})
	_, err := svc.Register(ctx, RegisterRequest{Name: "Jane", Email: "jane@email.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "jane@email.com", Password: "wrong-pass"})
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.CodeOf(err))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@email.com", Password: "secret1"})
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.CodeOf(err))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Login(ctx, LoginRequest{Email: "", Password: "secret1"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Login(ctx, LoginRequest{Email: "jane@email.com"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRateLimit(t *testing.T) {
	svc, _ := newTestService(newMemoryStore(), RateLimit{PerMinute: 1, Burst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, LoginRequest{Email: "x@y.co", Password: "whatever"})
		assert.Equal(t, apperr.CodeInvalidCredentials, apperr.CodeOf(err))
	}

	_, err := svc.Login(ctx, LoginRequest{Email: "x@y.co", Password: "whatever"})
	assert.Equal(t, apperr.KindTooManyRequests, apperr.KindOf(err))
}

func TestLookupIdentity(t *testing.T) {
	store := newMemoryStore()
	c, err := store.Insert(context.Background(), NewCustomer{Name: "Admin", Email: "admin@email.com", PasswordHash: "x", IsAdmin: true})
	require.NoError(t, err)

	lookup := LookupIdentity(store)
	id, err := lookup(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{CustomerID: c.ID, Email: "admin@email.com", IsAdmin: true}, id)

	_, err = lookup(context.Background(), 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
