package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config aggregates every setting of the service.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Cipher CipherConfig
	Auth   AuthConfig
	Lock   LockConfig
	Events EventsConfig
	Chat   ChatConfig
	Log    LogConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	cipher, err := loadCipherConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	if store.Driver == DriverFirestore || auth.Mode == AuthFirebase {
		if store.Firebase.ServiceAccount == "" {
			return nil, fmt.Errorf("FIREBASE_SERVICE_ACCOUNT is required for STORE_DRIVER=%s AUTH_MODE=%s", store.Driver, auth.Mode)
		}
	}

	lock, err := loadLockConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Store:  store,
		Cipher: cipher,
		Auth:   auth,
		Lock:   lock,
		Events: loadEventsConfig(),
		Chat:   chat,
		Log:    log,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3002"
	}

	if strings.Contains(port, ":") {
		// Accept ":3002" or "127.0.0.1:3002" as well.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// CipherConfig holds the message secret and the scheme for new ciphertext.
type CipherConfig struct {
	Secret string
	Scheme string
}

func loadCipherConfig() (CipherConfig, error) {
	secret := os.Getenv("MESSAGE_SECRET_KEY")
	if strings.TrimSpace(secret) == "" {
		return CipherConfig{}, fmt.Errorf("MESSAGE_SECRET_KEY is required; message encryption cannot proceed without a secure key")
	}

	scheme := strings.ToLower(getEnvOrDefault("MESSAGE_CIPHER", "cryptojs"))
	switch scheme {
	case "cryptojs", "xchacha":
	default:
		return CipherConfig{}, fmt.Errorf("invalid MESSAGE_CIPHER value %q", scheme)
	}
	return CipherConfig{Secret: secret, Scheme: scheme}, nil
}

// Store drivers.
const (
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
	DriverMemory    = "memory"
)

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver   string
	Firebase FirebaseConfig
	Mongo    MongoConfig
}

// FirebaseConfig carries the service account used by Firestore and Firebase Auth.
type FirebaseConfig struct {
	ServiceAccount string
	ProjectID      string
}

type MongoConfig struct {
	URI      string
	Database string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverFirestore))

	firebase, err := loadFirebaseConfig()
	if err != nil {
		return StoreConfig{}, err
	}

	cfg := StoreConfig{
		Driver:   driver,
		Firebase: firebase,
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(os.Getenv("MONGO_URI")),
			Database: getEnvOrDefault("MONGO_DATABASE", "penpal"),
		},
	}

	switch driver {
	case DriverFirestore, DriverMemory:
	case DriverMongo:
		if cfg.Mongo.URI == "" {
			return StoreConfig{}, fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q", driver)
	}
	return cfg, nil
}

func loadFirebaseConfig() (FirebaseConfig, error) {
	raw := strings.TrimSpace(os.Getenv("FIREBASE_SERVICE_ACCOUNT"))
	cfg := FirebaseConfig{
		ServiceAccount: raw,
		ProjectID:      strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
	}
	if raw == "" {
		return cfg, nil
	}

	var account struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return FirebaseConfig{}, fmt.Errorf("invalid FIREBASE_SERVICE_ACCOUNT: %w", err)
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = account.ProjectID
	}
	return cfg, nil
}

// Auth modes.
const (
	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode      string
	JWTSecret string
}

func loadAuthConfig() (AuthConfig, error) {
	cfg := AuthConfig{
		Mode:      strings.ToLower(getEnvOrDefault("AUTH_MODE", AuthFirebase)),
		JWTSecret: strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
	}
	switch cfg.Mode {
	case AuthFirebase:
	case AuthJWT:
		if cfg.JWTSecret == "" {
			return AuthConfig{}, fmt.Errorf("AUTH_JWT_SECRET is required for AUTH_MODE=jwt")
		}
	default:
		return AuthConfig{}, fmt.Errorf("invalid AUTH_MODE value %q", cfg.Mode)
	}
	return cfg, nil
}

// LockConfig enables the Redis lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr string
	TTL       time.Duration
}

// Enabled reports whether pair and onetime checks are serialized.
func (c LockConfig) Enabled() bool {
	return c.RedisAddr != ""
}

func loadLockConfig() (LockConfig, error) {
	ttl, err := parseDurationEnv("LOCK_TTL", 5*time.Second)
	if err != nil {
		return LockConfig{}, err
	}
	return LockConfig{
		RedisAddr: strings.TrimSpace(os.Getenv("LOCK_REDIS_ADDR")),
		TTL:       ttl,
	}, nil
}

// EventsConfig enables the RabbitMQ publisher when AMQPURL is set.
type EventsConfig struct {
	AMQPURL      string
	AMQPExchange string
}

func loadEventsConfig() EventsConfig {
	return EventsConfig{
		AMQPURL:      strings.TrimSpace(os.Getenv("EVENTS_AMQP_URL")),
		AMQPExchange: getEnvOrDefault("EVENTS_AMQP_EXCHANGE", "penpal.chat.events"),
	}
}

// ChatConfig holds the chat policies.
type ChatConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	PenpalDelay     time.Duration
	MarkReadOnFetch bool
}

func loadChatConfig() (ChatConfig, error) {
	cfg := ChatConfig{DefaultPageSize: 20, MaxPageSize: 100}

	if size, err := parseOptionalIntEnv("CHAT_DEFAULT_PAGE_SIZE"); err != nil {
		return ChatConfig{}, err
	} else if size != nil {
		if *size < 1 {
			return ChatConfig{}, fmt.Errorf("invalid CHAT_DEFAULT_PAGE_SIZE value %d", *size)
		}
		cfg.DefaultPageSize = *size
	}

	if maxSize, err := parseOptionalIntEnv("CHAT_MAX_PAGE_SIZE"); err != nil {
		return ChatConfig{}, err
	} else if maxSize != nil {
		cfg.MaxPageSize = *maxSize
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		return ChatConfig{}, fmt.Errorf("CHAT_MAX_PAGE_SIZE (%d) must not be below CHAT_DEFAULT_PAGE_SIZE (%d)", cfg.MaxPageSize, cfg.DefaultPageSize)
	}

	delay, err := parseDurationEnv("CHAT_PENPAL_DELAY", 60*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}
	if delay < 0 {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_PENPAL_DELAY value %s", delay)
	}
	cfg.PenpalDelay = delay

	markRead, err := parseBoolEnv("CHAT_MARK_READ_ON_FETCH", true)
	if err != nil {
		return ChatConfig{}, err
	}
	cfg.MarkReadOnFetch = markRead

	return cfg, nil
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string
	Development bool
}

func loadLogConfig() (LogConfig, error) {
	dev, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}
	level := getEnvOrDefault("LOG_LEVEL", "info")
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q: %w", level, err)
	}
	return LogConfig{
		Level:       level,
		Development: dev,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
