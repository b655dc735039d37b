package auth

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = fmt.Errorf("invalid username or password: %w", entity.ErrUnauthorized)

type Repository interface {
	GetOperatorCredentials(ctx context.Context, username string) (*entity.Operator, string, error)
	CreateOperator(ctx context.Context, op *entity.Operator, passwordHash string) (*entity.Operator, error)
	CreateSession(ctx context.Context, operatorID string, ttl time.Duration) (string, time.Time, error)
	GetSessionOperator(ctx context.Context, token string) (*entity.Operator, time.Time, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type cached struct {
	operator  entity.Operator
	expiresAt time.Time
}

type Service struct {
	repository Repository
	ttl        time.Duration
	mu         sync.Mutex
	sessions   map[string]cached
	log        *slog.Logger
}

func NewAuthService(logger *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		ttl:      ttl,
		sessions: make(map[string]cached),
		log:      logger.With(sl.Module("auth-service")),
	}
}

func (s *Service) SetRepository(repository Repository) {
	s.repository = repository
}

func (s *Service) Login(ctx context.Context, username, password string) (*entity.Session, error) {
	if s.repository == nil {
		return nil, fmt.Errorf("auth repository not set")
	}
	op, hash, err := s.repository.GetOperatorCredentials(ctx, username)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.repository.CreateSession(ctx, op.ID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.remember(token, *op, expires)

	s.log.Info("operator logged in",
		slog.String("username", op.Username),
		slog.String("role", op.Role),
	)
	return &entity.Session{Token: token, Operator: *op, ExpiresAt: expires}, nil
}

// AuthenticateByToken resolves a bearer token, from memory when possible.
func (s *Service) AuthenticateByToken(ctx context.Context, token string) (*entity.Operator, error) {
	now := time.Now()
	s.mu.Lock()
	c, ok := s.sessions[token]
	if ok && now.After(c.expiresAt) {
		delete(s.sessions, token)
		ok = false
	}
	s.mu.Unlock()
	if ok {
		op := c.operator
		return &op, nil
	}

	if s.repository == nil {
		return nil, fmt.Errorf("auth repository not set")
	}
	op, expires, err := s.repository.GetSessionOperator(ctx, token)
	if err != nil {
		return nil, err
	}
	if op == nil || now.After(expires) {
		return nil, fmt.Errorf("session expired or not found: %w", entity.ErrUnauthorized)
	}
	s.remember(token, *op, expires)
	return op, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	if s.repository == nil {
		return nil
	}
	return s.repository.DeleteSession(ctx, token)
}

// CreateOperator hashes the password and upserts the operator by username.
func (s *Service) CreateOperator(ctx context.Context, op entity.Operator, password string) (*entity.Operator, error) {
	if s.repository == nil {
		return nil, fmt.Errorf("auth repository not set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.repository.CreateOperator(ctx, &op, string(hash))
}

// PurgeExpired drops expired sessions from memory and storage.
func (s *Service) PurgeExpired(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	for token, c := range s.sessions {
		if now.After(c.expiresAt) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()

	if s.repository == nil {
		return
	}
	n, err := s.repository.DeleteExpiredSessions(ctx)
	if err != nil {
		s.log.Warn("purge sessions", sl.Err(err))
		return
	}
	if n > 0 {
		s.log.Debug("expired sessions purged", slog.Int64("count", n))
	}
}

func (s *Service) remember(token string, op entity.Operator, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = cached{operator: op, expiresAt: expires}
}
