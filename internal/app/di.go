// Package app provides the dependency injection container assembling the
// application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/registrations/internal/config"
	cryptoService "github.com/allisson/registrations/internal/crypto/service"
	"github.com/allisson/registrations/internal/database"
	"github.com/allisson/registrations/internal/http"
	"github.com/allisson/registrations/internal/metrics"
	"github.com/allisson/registrations/internal/notification"
	registrationHTTP "github.com/allisson/registrations/internal/registration/http"
	registrationRepository "github.com/allisson/registrations/internal/registration/repository"
	registrationUsecase "github.com/allisson/registrations/internal/registration/usecase"
	"github.com/allisson/registrations/internal/vault"
)

// Container holds all application dependencies and provides methods to access
// them. Components are created lazily on first access.
type Container struct {
	config *config.Config

	logger      *slog.Logger
	db          *sql.DB
	redisClient *redis.Client

	vaultClient vault.Client
	keyWrapper  cryptoService.KeyWrapper
	cipher      cryptoService.PayloadCipher

	entryRepo   registrationUsecase.EntryRepository
	abuseRepo   registrationUsecase.AbuseLogRepository
	profileRepo registrationUsecase.ProfileRepository

	entryUseCase registrationUsecase.EntryUseCase

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	httpServer    *http.Server
	metricsServer *http.MetricsServer

	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	redisInit           sync.Once
	vaultClientInit     sync.Once
	keyWrapperInit      sync.Once
	cipherInit          sync.Once
	entryRepoInit       sync.Once
	abuseRepoInit       sync.Once
	profileRepoInit     sync.Once
	entryUseCaseInit    sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the record store connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// Redis returns the redis client used by the redis abuse log driver.
func (c *Container) Redis() (*redis.Client, error) {
	c.redisInit.Do(func() {
		client, err := database.ConnectRedis(context.Background(), c.config.RedisURL)
		if err != nil {
			c.initErrors["redis"] = fmt.Errorf("failed to connect to redis: %w", err)
			return
		}
		c.redisClient = client
	})
	if storedErr, exists := c.initErrors["redis"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// VaultClient returns the secret vault client, wrapped with the in-process
// key cache when enabled.
func (c *Container) VaultClient() (vault.Client, error) {
	c.vaultClientInit.Do(func() {
		client, err := c.initVaultClient()
		if err != nil {
			c.initErrors["vaultClient"] = err
			return
		}
		c.vaultClient = client
	})
	if storedErr, exists := c.initErrors["vaultClient"]; exists {
		return nil, storedErr
	}
	return c.vaultClient, nil
}

// KeyWrapper returns the KMS key wrapper.
func (c *Container) KeyWrapper() (cryptoService.KeyWrapper, error) {
	c.keyWrapperInit.Do(func() {
		wrapper, err := cryptoService.NewKMSKeyWrapper(context.Background(), c.config.KMSKeyURI)
		if err != nil {
			c.initErrors["keyWrapper"] = fmt.Errorf("failed to create key wrapper: %w", err)
			return
		}
		c.keyWrapper = wrapper
	})
	if storedErr, exists := c.initErrors["keyWrapper"]; exists {
		return nil, storedErr
	}
	return c.keyWrapper, nil
}

// PayloadCipher returns the configured payload cipher.
func (c *Container) PayloadCipher() (cryptoService.PayloadCipher, error) {
	c.cipherInit.Do(func() {
		cipher, err := cryptoService.NewPayloadCipher(c.config.PayloadCipher)
		if err != nil {
			c.initErrors["cipher"] = err
			return
		}
		c.cipher = cipher
	})
	if storedErr, exists := c.initErrors["cipher"]; exists {
		return nil, storedErr
	}
	return c.cipher, nil
}

// EntryRepository returns the registration entry repository.
func (c *Container) EntryRepository() (registrationUsecase.EntryRepository, error) {
	c.entryRepoInit.Do(func() {
		repo, err := c.initEntryRepository()
		if err != nil {
			c.initErrors["entryRepo"] = err
			return
		}
		c.entryRepo = repo
	})
	if storedErr, exists := c.initErrors["entryRepo"]; exists {
		return nil, storedErr
	}
	return c.entryRepo, nil
}

// AbuseLogRepository returns the abuse log repository selected by ABUSE_STORE.
func (c *Container) AbuseLogRepository() (registrationUsecase.AbuseLogRepository, error) {
	c.abuseRepoInit.Do(func() {
		repo, err := c.initAbuseLogRepository()
		if err != nil {
			c.initErrors["abuseRepo"] = err
			return
		}
		c.abuseRepo = repo
	})
	if storedErr, exists := c.initErrors["abuseRepo"]; exists {
		return nil, storedErr
	}
	return c.abuseRepo, nil
}

// ProfileRepository returns the registered profile repository.
func (c *Container) ProfileRepository() (registrationUsecase.ProfileRepository, error) {
	c.profileRepoInit.Do(func() {
		repo, err := c.initProfileRepository()
		if err != nil {
			c.initErrors["profileRepo"] = err
			return
		}
		c.profileRepo = repo
	})
	if storedErr, exists := c.initErrors["profileRepo"]; exists {
		return nil, storedErr
	}
	return c.profileRepo, nil
}

// EntryUseCase returns the registration entry lifecycle manager.
func (c *Container) EntryUseCase() (registrationUsecase.EntryUseCase, error) {
	c.entryUseCaseInit.Do(func() {
		useCase, err := c.initEntryUseCase()
		if err != nil {
			c.initErrors["entryUseCase"] = err
			return
		}
		c.entryUseCase = useCase
	})
	if storedErr, exists := c.initErrors["entryUseCase"]; exists {
		return nil, storedErr
	}
	return c.entryUseCase, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// returned when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = bm
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the API server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.entryUseCase != nil {
		// Let in-flight key and record writes land before closing stores.
		c.entryUseCase.Wait()
	}

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.keyWrapper != nil {
		if err := c.keyWrapper.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("key wrapper close: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the record store connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initVaultClient creates the vault client with the optional key cache layer.
func (c *Container) initVaultClient() (vault.Client, error) {
	client, err := vault.NewHashiVaultClient(
		c.config.VaultAddress,
		c.config.VaultToken,
		c.config.VaultMount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if c.config.KeyCacheEnabled {
		return vault.NewCachingClient(client, c.config.KeyCacheMaxEntries), nil
	}

	return client, nil
}

// initEntryRepository creates the entry repository for the configured driver.
func (c *Container) initEntryRepository() (registrationUsecase.EntryRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for entry repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return registrationRepository.NewMySQLEntryRepository(db), nil
	case "postgres":
		return registrationRepository.NewPostgreSQLEntryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAbuseLogRepository creates the abuse log repository for the configured store.
func (c *Container) initAbuseLogRepository() (registrationUsecase.AbuseLogRepository, error) {
	switch c.config.AbuseStore {
	case "redis":
		client, err := c.Redis()
		if err != nil {
			return nil, fmt.Errorf("failed to get redis for abuse log repository: %w", err)
		}
		return registrationRepository.NewRedisAbuseLogRepository(client, c.config.AbuseWindow), nil
	case "sql":
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for abuse log repository: %w", err)
		}
		switch c.config.DBDriver {
		case "mysql":
			return registrationRepository.NewMySQLAbuseLogRepository(db), nil
		case "postgres":
			return registrationRepository.NewPostgreSQLAbuseLogRepository(db), nil
		default:
			return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported abuse store: %s", c.config.AbuseStore)
	}
}

// initProfileRepository creates the profile repository for the configured driver.
func (c *Container) initProfileRepository() (registrationUsecase.ProfileRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for profile repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return registrationRepository.NewMySQLProfileRepository(db), nil
	case "postgres":
		return registrationRepository.NewPostgreSQLProfileRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initEntryUseCase creates the entry use case with all its dependencies.
func (c *Container) initEntryUseCase() (registrationUsecase.EntryUseCase, error) {
	entryRepo, err := c.EntryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get entry repository for entry use case: %w", err)
	}

	abuseRepo, err := c.AbuseLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get abuse log repository for entry use case: %w", err)
	}

	profileRepo, err := c.ProfileRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile repository for entry use case: %w", err)
	}

	vaultClient, err := c.VaultClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get vault client for entry use case: %w", err)
	}

	keyWrapper, err := c.KeyWrapper()
	if err != nil {
		return nil, fmt.Errorf("failed to get key wrapper for entry use case: %w", err)
	}

	cipher, err := c.PayloadCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get payload cipher for entry use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for entry use case: %w", err)
	}

	var notifier registrationUsecase.Notifier
	if c.config.NotificationURL != "" {
		notifier = notification.NewClient(
			c.config.NotificationURL,
			c.config.NotificationAPIKey,
			c.config.NotificationTimeout,
		)
	}

	return registrationUsecase.NewEntryUseCase(
		entryRepo,
		abuseRepo,
		profileRepo,
		vaultClient,
		keyWrapper,
		cipher,
		notifier,
		businessMetrics,
		c.Logger(),
		registrationUsecase.Options{
			EntryTTL:         c.config.EntryTTL,
			AbuseWindow:      c.config.AbuseWindow,
			AbuseMaxRequests: c.config.AbuseMaxRequests,
		},
	), nil
}

// initHTTPServer creates the API server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	entryUseCase, err := c.EntryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get entry use case for http server: %w", err)
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	logger := c.Logger()
	entryHandler := registrationHTTP.NewEntryHandler(entryUseCase, logger)

	return http.NewServer(c.config, logger, db, entryHandler, metricsProvider)
}
