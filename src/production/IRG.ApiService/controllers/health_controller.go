package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

// HealthReporter reports the status of the service dependencies
type HealthReporter interface {
	GetHealthStatus(ctx context.Context) map[string]interface{}
}

// HealthController handles health and metrics requests
type HealthController struct {
	health      HealthReporter
	readingRepo interfaces.ReadingRepository
	logger      *logger.Logger
	started     time.Time
	metrics     http.Handler
}

// NewHealthController creates a new health controller
func NewHealthController(health HealthReporter, readingRepo interfaces.ReadingRepository, logger *logger.Logger) *HealthController {
	c := &HealthController{
		health:      health,
		readingRepo: readingRepo,
		logger:      logger,
		started:     time.Now(),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "irrigation_api_up",
			Help: "Whether the API service is running",
		}, func() float64 { return 1 }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "irrigation_api_uptime_seconds",
			Help: "Seconds since the API service started",
		}, func() float64 { return time.Since(c.started).Seconds() }),
		&readingsCollector{repo: readingRepo, logger: logger},
	)
	c.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return c
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	router.GET("/metrics", c.Metrics)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	status := c.health.GetHealthStatus(ctx.Request.Context())
	code := http.StatusOK
	if status["status"] == "error" {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}

// Metrics serves the controller's registry in the Prometheus exposition format
func (c *HealthController) Metrics(ctx *gin.Context) {
	c.metrics.ServeHTTP(ctx.Writer, ctx.Request)
}

var readingsTotalDesc = prometheus.NewDesc(
	"irrigation_readings_total",
	"Readings stored in dados_irrigacao",
	nil, nil,
)

// readingsCollector counts stored readings at scrape time. A failed count
// drops the series from that scrape.
type readingsCollector struct {
	repo   interfaces.ReadingRepository
	logger *logger.Logger
}

func (rc *readingsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- readingsTotalDesc
}

func (rc *readingsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := rc.repo.ListReadings(ctx, interfaces.ReadingQueryParams{Limit: 1})
	if err != nil {
		rc.logger.WithError(err).Warn("Failed to count readings for metrics")
		return
	}
	ch <- prometheus.MustNewConstMetric(readingsTotalDesc, prometheus.GaugeValue, float64(res.Total))
}
