package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.ApiService/health"
	config "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Config"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	implementation "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
)

// ApiContainer manages dependencies and their lifecycle for the API service
type ApiContainer struct {
	config *config.Config
	logger *logger.Logger

	db          *sql.DB
	readingRepo interfaces.ReadingRepository

	mongoClient *mongo.Client
	weatherRepo interfaces.WeatherRepository
	mongoTried  bool

	healthChecker *health.HealthChecker

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions, run in reverse order on shutdown
	cleanupFuncs []func() error
}

// IngestorContainer manages dependencies for the MQTT Ingestor service
type IngestorContainer struct {
	config *config.IngestorConfig
	logger *logger.Logger
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*ApiContainer, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging).WithService("irrigation-api")

	return &ApiContainer{config: cfg, logger: log}, nil
}

// NewIngestorContainer creates a new container for the MQTT Ingestor service
func NewIngestorContainer() (*IngestorContainer, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging).WithService("irrigation-ingestor")

	return &IngestorContainer{config: cfg, logger: log}, nil
}

// GetConfig returns the configuration
func (c *ApiContainer) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *ApiContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetLogger returns the logger
func (c *IngestorContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetReadingRepository opens the configured reading store on first use.
// PostgreSQL tables are created when missing; SQLite is migrated by gorm.
func (c *ApiContainer) GetReadingRepository(ctx context.Context) (interfaces.ReadingRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readingRepo != nil {
		return c.readingRepo, nil
	}

	switch c.config.Database.Driver {
	case config.DriverSQLite:
		orm, err := implementation.OpenSQLite(c.config.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		db, err := orm.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get SQLite handle: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, func() error { return implementation.CloseSQLite(orm) })
		c.readingRepo = implementation.NewSQLiteReadingRepository(orm)

	default:
		db, err := health.ConnectPostgresWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := health.NewDatabaseManager(db).CreateTables(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, db.Close)
		c.readingRepo = implementation.NewPostgresReadingRepository(db)
	}

	c.logger.WithField("driver", c.config.Database.Driver).Info("Reading store initialized")
	return c.readingRepo, nil
}

// GetDatabase returns the SQL handle behind the reading store
func (c *ApiContainer) GetDatabase(ctx context.Context) (*sql.DB, error) {
	if _, err := c.GetReadingRepository(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db, nil
}

// GetWeatherRepository returns the MongoDB snapshot cache. It returns a nil
// repository without error when MONGODB_URI is unset or the cache is unreachable,
// so the weather service runs uncached.
func (c *ApiContainer) GetWeatherRepository(ctx context.Context) interfaces.WeatherRepository {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mongoTried {
		return c.weatherRepo
	}
	c.mongoTried = true

	if c.config.Mongo.URI == "" {
		c.logger.Info("MONGODB_URI not set, weather cache disabled")
		return nil
	}

	client, err := health.ConnectMongoWithTimeout(c.config.Mongo.URI, c.config.Mongo.ConnectTimeout)
	if err != nil {
		c.logger.WithError(err).Warn("Weather cache unavailable, continuing without it")
		return nil
	}
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	})

	repo := implementation.NewMongoWeatherRepository(client.Database(c.config.Mongo.DBName).Collection(c.config.Mongo.WeatherCollection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		c.logger.WithError(err).Warn("Failed to create weather cache indexes")
	}

	c.mongoClient = client
	c.weatherRepo = repo
	return repo
}

// GetHealthChecker returns the health checker
func (c *ApiContainer) GetHealthChecker(ctx context.Context) (*health.HealthChecker, error) {
	db, err := c.GetDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health checker: %w", err)
	}
	c.GetWeatherRepository(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		c.healthChecker = health.NewHealthChecker(db, c.config.Database.Driver, c.mongoClient)
	}
	return c.healthChecker, nil
}

// AddCleanupFunc adds a cleanup function
func (c *ApiContainer) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *ApiContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// Shutdown gracefully shuts down the ingestor container
func (c *IngestorContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down ingestor container...")
	c.logger.Info("Ingestor container shutdown complete")
	return nil
}
