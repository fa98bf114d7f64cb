package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/pokersession/internal/config"
	"github.com/mcoot/pokersession/internal/dependencies/clock"
	"github.com/mcoot/pokersession/internal/dependencies/idgen"
	"github.com/mcoot/pokersession/internal/events"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/services/club"
	"github.com/mcoot/pokersession/internal/services/ledger"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/services/session"
	"github.com/mcoot/pokersession/internal/storage"
	"github.com/mcoot/pokersession/internal/storage/memory"
	redisstorage "github.com/mcoot/pokersession/internal/storage/redis"
	"github.com/mcoot/pokersession/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQLite = config.StorageSQLite
	StorageTypeMySQL  = config.StorageMySQL
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock     clock.Clock
	IDs       idgen.Generator
	Publisher events.Publisher

	// Services
	AuthService    *auth.Service
	ClubService    *club.Service
	SessionService *session.Service
	LedgerService  *ledger.Service
	Lifecycle      *lifecycle.Controller

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis", "sqlite" or "mysql")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// MySQLDSN is the go-sql-driver DSN (required if StorageType is "mysql")
	MySQLDSN string
	// AMQPURL enables publishing events to RabbitMQ when set
	AMQPURL      string
	AMQPExchange string
}

// ConfigFrom converts the environment configuration into factory wiring
func ConfigFrom(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		AuthConfig: auth.Config{
			Secret:   cfg.JWTSecret,
			TokenTTL: cfg.TokenTTL,
		},
		Logger:       logger,
		StorageType:  cfg.StorageType,
		SQLitePath:   cfg.SQLitePath,
		MySQLDSN:     cfg.MySQLDSN,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
	}
	if cfg.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		out.RedisConfig = &redisCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer

	store, closer, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	// Events always go to the log; the broker is optional
	publishers := events.Multi{events.NewLogPublisher(logger)}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		publishers = append(publishers, amqpPublisher)
		closers = append(closers, amqpPublisher)
	}

	app := newWithDependencies(store, clock.New(), idgen.New(), publishers, cfg.AuthConfig, logger)
	app.closers = closers
	return app, nil
}

func openStorage(cfg Config) (storage.Storage, io.Closer, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisStore, redisStore, nil
	case StorageTypeSQLite, StorageTypeMySQL:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var (
			store *sqlstore.Store
			err   error
		)
		if storageType == StorageTypeSQLite {
			store, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		} else {
			store, err = sqlstore.OpenMySQL(ctx, cfg.MySQLDSN)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", storageType, err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or mysql", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	ids idgen.Generator,
	publisher events.Publisher,
	authCfg auth.Config,
	logger *slog.Logger,
) *App {
	return &App{
		Storage:        store,
		Clock:          clk,
		IDs:            ids,
		Publisher:      publisher,
		AuthService:    auth.New(store, clk, ids, authCfg),
		ClubService:    club.New(store, clk, ids, logger),
		SessionService: session.New(store, clk, ids, publisher, logger),
		LedgerService:  ledger.New(store, clk, ids, publisher, logger),
		Lifecycle:      lifecycle.NewController(store, clk, publisher, logger),
	}
}

// Close releases storage connections and the broker channel
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	// Reverse order: the broker is opened after storage
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
