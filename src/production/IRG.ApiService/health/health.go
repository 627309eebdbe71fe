package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	config "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// HealthChecker provides health check functionality
type HealthChecker struct {
	db     *sql.DB
	driver string
	mongo  *mongo.Client
}

// NewHealthChecker creates a new health checker. mongoClient may be nil when
// the weather cache is disabled.
func NewHealthChecker(db *sql.DB, driver string, mongoClient *mongo.Client) *HealthChecker {
	return &HealthChecker{db: db, driver: driver, mongo: mongoClient}
}

// CheckDatabaseHealth pings the reading store and runs a trivial query
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}
	return nil
}

// CheckMongoHealth pings the weather cache
func (h *HealthChecker) CheckMongoHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.mongo.Ping(ctx, readpref.Primary())
}

// GetHealthStatus returns the current health status. The reading store decides
// readiness; a failing weather cache only degrades the status.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) map[string]interface{} {
	checks := make(map[string]interface{})
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
		"checks":    checks,
	}

	overall := "ok"
	if err := h.CheckDatabaseHealth(ctx); err != nil {
		overall = "error"
		checks["database"] = map[string]interface{}{"status": "error", "driver": h.driver, "error": err.Error()}
	} else {
		checks["database"] = map[string]interface{}{"status": "ok", "driver": h.driver}
	}

	if h.mongo != nil {
		if err := h.CheckMongoHealth(ctx); err != nil {
			if overall == "ok" {
				overall = "degraded"
			}
			checks["mongo"] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			checks["mongo"] = map[string]interface{}{"status": "ok"}
		}
	}

	status["status"] = overall
	return status
}

// DatabaseManager handles database operations
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// ConnectMongoWithTimeout connects to the weather cache and pings it
func ConnectMongoWithTimeout(uri string, timeout time.Duration) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGODB_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetServerSelectionTimeout(timeout)
	clientOptions.SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}
	return client, nil
}

// CreateTables creates the dados_irrigacao table and its indexes if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createReadingsTable := `
		CREATE TABLE IF NOT EXISTS dados_irrigacao (
			id_coleta          BIGSERIAL PRIMARY KEY,
			sensor             VARCHAR(100) NOT NULL,
			valor_coleta       DOUBLE PRECISION NOT NULL,
			data_hora_coleta   TIMESTAMPTZ NOT NULL,
			status_rele        SMALLINT CHECK (status_rele IN (0, 1)),
			motivo_acionamento VARCHAR(255)
		);
	`

	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_dados_irrigacao_sensor ON dados_irrigacao (sensor);
		CREATE INDEX IF NOT EXISTS idx_dados_irrigacao_coleta ON dados_irrigacao (data_hora_coleta DESC);
	`

	for _, query := range []string{createReadingsTable, createIndexes} {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
