package customer

import (
	"context"
	"time"

	"carrental/internal/apperr"
	"carrental/internal/auth"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimit bounds register and login attempts across all callers.
type RateLimit struct {
	PerMinute int
	Burst     int
}

// service implements the Service interface.
type service struct {
	store       Store
	tokens      *auth.TokenManager
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewService creates the account service. A zero PerMinute disables rate
// limiting.
func NewService(store Store, tokens *auth.TokenManager, limit RateLimit, logger *zap.Logger) Service {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if limit.PerMinute > 0 {
		burst := limit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit.PerMinute)), burst)
	}
	return &service{
		store:       store,
		tokens:      tokens,
		rateLimiter: limiter,
		logger:      logger,
		tracer:      otel.Tracer("carrental/customer"),
	}
}

// Register creates a non-admin account.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.register")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, apperr.TooManyRequests("too many attempts, try again later")
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	existing, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(apperr.CodeEmailExists, "email already exists")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	c, err := s.store.Insert(ctx, NewCustomer{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("customer.id", c.ID))
	s.logger.Info("customer registered", zap.Int64("customer_id", c.ID))
	return c, nil
}

// Login checks credentials and issues an access token. Unknown addresses
// and wrong passwords fail identically.
func (s *service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "customer.login")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, apperr.TooManyRequests("too many attempts, try again later")
	}

	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, apperr.Validation(apperr.CodeInvalidField, "email is required")
	}
	if req.Password == "" {
		return nil, apperr.Validation(apperr.CodeInvalidField, "password is required")
	}

	invalid := apperr.Unauthorized(apperr.CodeInvalidCredentials, "invalid credentials")

	c, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, invalid
	}

	ok, err := verifyPassword(req.Password, c.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable", zap.Int64("customer_id", c.ID), zap.Error(err))
		return nil, invalid
	}
	if !ok {
		return nil, invalid
	}

	token, expires, err := s.tokens.Issue(c.Identity())
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}

	c.PasswordHash = ""
	s.logger.Info("customer logged in", zap.Int64("customer_id", c.ID))
	return &Session{Token: token, ExpiresAt: expires, Customer: c}, nil
}

// LookupIdentity adapts a Store to auth.LookupFunc.
func LookupIdentity(store Store) auth.LookupFunc {
	return func(ctx context.Context, id int64) (auth.Identity, error) {
		c, err := store.Get(ctx, id)
		if err != nil {
			return auth.Identity{}, err
		}
		return c.Identity(), nil
	}
}
