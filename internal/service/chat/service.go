// Package chat implements the two-party chat core: the chat directory, the
// message ledger, the visibility and pagination engine and the chat
// lifecycle. All durable state lives in the store; the service itself holds
// only read-only configuration and is safe for concurrent use.
package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/internal/lock"
	"github.com/zhouzirui/penpal/backend/internal/store"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

//go:generate mockgen -destination=mocks/cipher_mock.go -package=mocks . Cipher

// Cipher turns message text into ciphertext and back.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Config holds the chat policies that deployments may tune.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	// PenpalDelay is the embargo before a message becomes visible to the
	// participant who did not send it.
	PenpalDelay time.Duration
	// MarkReadOnFetch enables flipping the last message to read when the
	// recipient fetches messages.
	MarkReadOnFetch bool
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		PenpalDelay:     60 * time.Second,
		MarkReadOnFetch: true,
	}
}

// Service exposes the chat operations.
type Service struct {
	store  store.Store
	cipher Cipher
	locker lock.Locker
	events events.Publisher
	logger *zap.Logger
	cfg    Config
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker serializes pair creation and onetime sends through l.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPublisher sends mutation events to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// NewService wires the chat core around a store and a cipher.
func NewService(st store.Store, cipher Cipher, opts ...Option) *Service {
	s := &Service{
		store:  st,
		cipher: cipher,
		locker: lock.Noop{},
		events: events.Discard{},
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.DefaultPageSize <= 0 {
		s.cfg.DefaultPageSize = DefaultConfig().DefaultPageSize
	}
	if s.cfg.MaxPageSize < s.cfg.DefaultPageSize {
		s.cfg.MaxPageSize = s.cfg.DefaultPageSize
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return store.Timestamp(s.now())
}

// dependencyFailure logs err with context and hides it behind a generic failure.
func (s *Service) dependencyFailure(msg string, err error, fields ...zap.Field) error {
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	return appErrors.Dependency(msg, err)
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish chat event",
			zap.String("chat_id", evt.ChatID),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
	}
}

// decryptText returns the plaintext, or "" when the ciphertext cannot be
// opened. Callers show empty text as undisplayable.
func (s *Service) decryptText(chatID, ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	plain, err := s.cipher.Decrypt(ciphertext)
	if err != nil {
		s.logger.Warn("undisplayable message text", zap.String("chat_id", chatID), zap.Error(err))
		return ""
	}
	return plain
}
