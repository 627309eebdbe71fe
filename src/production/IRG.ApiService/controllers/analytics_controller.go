package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	analytics "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Analytics"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

// AnalyticsController serves chart data computed from the stored readings
type AnalyticsController struct {
	readingRepo interfaces.ReadingRepository
	logger      *logger.Logger
}

// NewAnalyticsController creates a new analytics controller
func NewAnalyticsController(readingRepo interfaces.ReadingRepository, logger *logger.Logger) *AnalyticsController {
	return &AnalyticsController{readingRepo: readingRepo, logger: logger}
}

// RegisterRoutes registers the analytics routes with Gin
func (c *AnalyticsController) RegisterRoutes(router *gin.Engine) {
	a := router.Group("/analytics")
	{
		a.GET("/sensors", c.GetSensors)
		a.GET("/sensors/:sensor/series", c.GetSeries)
		a.GET("/correlation", c.GetCorrelation)
	}
}

func (c *AnalyticsController) GetSensors(ctx *gin.Context) {
	readings, err := c.readingRepo.AllReadings(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": analytics.SensorSummaries(readings)})
}

func (c *AnalyticsController) GetSeries(ctx *gin.Context) {
	sensor := ctx.Param("sensor")
	readings, err := c.readingRepo.AllReadings(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	points := analytics.SensorSeries(readings, sensor)
	if len(points) == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no readings for sensor " + sensor})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sensor": sensor, "points": points})
}

func (c *AnalyticsController) GetCorrelation(ctx *gin.Context) {
	readings, err := c.readingRepo.AllReadings(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, analytics.Correlate(readings, ctx.Query("x"), ctx.Query("y")))
}
