// Package app assembles the chat backend from configuration. The API server
// and the admin CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/zhouzirui/penpal/backend/internal/auth"
	"github.com/zhouzirui/penpal/backend/internal/config"
	"github.com/zhouzirui/penpal/backend/internal/crypto"
	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/internal/lock"
	chatService "github.com/zhouzirui/penpal/backend/internal/service/chat"
	"github.com/zhouzirui/penpal/backend/internal/store"
	firestoreStore "github.com/zhouzirui/penpal/backend/internal/store/firestore"
	"github.com/zhouzirui/penpal/backend/internal/store/memory"
	mongoStore "github.com/zhouzirui/penpal/backend/internal/store/mongo"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Cipher   *crypto.Cipher
	Store    store.Store
	Hub      *events.Hub
	Chat     *chatService.Service
	Verifier auth.Verifier

	relay   *events.AMQP
	closers []func() error
}

// New connects every dependency named by cfg. On error, whatever was
// already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger, Hub: events.NewHub(logger.Named("hub"))}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	scheme, err := crypto.ParseScheme(cfg.Cipher.Scheme)
	if err != nil {
		return nil, err
	}
	if a.Cipher, err = crypto.New(cfg.Cipher.Secret, scheme); err != nil {
		return nil, err
	}

	var fb *firebase.App
	if cfg.Store.Driver == config.DriverFirestore || cfg.Auth.Mode == config.AuthFirebase {
		if fb, err = newFirebaseApp(ctx, cfg.Store.Firebase); err != nil {
			return nil, err
		}
	}

	if a.Store, err = a.openStore(ctx, fb); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	if a.Verifier, err = newVerifier(ctx, cfg.Auth, fb); err != nil {
		return nil, err
	}

	var locker lock.Locker = lock.Noop{}
	if cfg.Lock.Enabled() {
		redisLock, err := lock.DialRedis(cfg.Lock.RedisAddr, cfg.Lock.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisLock.Close)
		locker = redisLock
		logger.Info("redis chat lock enabled", zap.String("addr", cfg.Lock.RedisAddr))
	}

	publishers := events.Multi{a.Hub}
	if cfg.Events.AMQPURL != "" {
		broker, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.AMQPExchange, logger.Named("relay"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, broker.Close)
		a.relay = broker
		publishers = append(publishers, broker)
		logger.Info("amqp chat events enabled", zap.String("exchange", cfg.Events.AMQPExchange))
	}

	a.Chat = chatService.NewService(a.Store, a.Cipher,
		chatService.WithLocker(locker),
		chatService.WithPublisher(publishers),
		chatService.WithLogger(logger.Named("chat")),
		chatService.WithConfig(chatService.Config{
			DefaultPageSize: cfg.Chat.DefaultPageSize,
			MaxPageSize:     cfg.Chat.MaxPageSize,
			PenpalDelay:     cfg.Chat.PenpalDelay,
			MarkReadOnFetch: cfg.Chat.MarkReadOnFetch,
		}),
	)

	logger.Info("chat backend ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("auth", cfg.Auth.Mode),
		zap.String("cipher", string(scheme)))
	return a, nil
}

func newFirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	fbCfg := &firebase.Config{ProjectID: cfg.ProjectID}
	fb, err := firebase.NewApp(ctx, fbCfg, option.WithCredentialsJSON([]byte(cfg.ServiceAccount)))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return fb, nil
}

func (a *App) openStore(ctx context.Context, fb *firebase.App) (store.Store, error) {
	cfg := a.Config.Store
	switch cfg.Driver {
	case config.DriverFirestore:
		client, err := fb.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("init firestore: %w", err)
		}
		return firestoreStore.New(client), nil
	case config.DriverMongo:
		return mongoStore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case config.DriverMemory:
		a.Logger.Warn("using in-memory store; chats are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, fb *firebase.App) (auth.Verifier, error) {
	switch cfg.Mode {
	case config.AuthJWT:
		return auth.NewJWT(cfg.JWTSecret), nil
	case config.AuthFirebase:
		client, err := fb.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return auth.NewFirebase(client), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// StartEventRelay feeds events published by other instances into the local
// hub until ctx is done. It does nothing unless an AMQP exchange is configured.
func (a *App) StartEventRelay(ctx context.Context) {
	if a.relay == nil {
		return
	}
	go func() {
		if err := a.relay.Consume(ctx, a.Hub); err != nil {
			a.Logger.Error("amqp event relay stopped", zap.Error(err))
		}
	}()
	a.Logger.Info("amqp event relay started", zap.String("instance", a.relay.Instance()))
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
