package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	analytics "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Analytics"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	weather "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Weather"
)

// WeatherProvider returns the current weather series
type WeatherProvider interface {
	Current(ctx context.Context, refresh bool) (*weather.Snapshot, error)
}

// WeatherController serves the Open-Meteo series and its temperature/humidity chart data
type WeatherController struct {
	weather WeatherProvider
	logger  *logger.Logger
}

// NewWeatherController creates a new weather controller
func NewWeatherController(provider WeatherProvider, logger *logger.Logger) *WeatherController {
	return &WeatherController{weather: provider, logger: logger}
}

// RegisterRoutes registers the weather routes with Gin
func (c *WeatherController) RegisterRoutes(router *gin.Engine) {
	w := router.Group("/weather")
	{
		w.GET("", c.GetWeather)
		w.GET("/correlation", c.GetCorrelation)
	}
}

func (c *WeatherController) snapshot(ctx *gin.Context) (*weather.Snapshot, bool) {
	refresh := false
	if raw := ctx.Query("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid refresh"})
			return nil, false
		}
		refresh = v
	}

	snap, err := c.weather.Current(ctx.Request.Context(), refresh)
	if err != nil {
		logger.FromGin(ctx, c.logger).WithError(err).Warn("Weather unavailable")
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return nil, false
	}
	return snap, true
}

func (c *WeatherController) GetWeather(ctx *gin.Context) {
	snap, ok := c.snapshot(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, snap)
}

func (c *WeatherController) GetCorrelation(ctx *gin.Context) {
	snap, ok := c.snapshot(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"stale":       snap.Stale,
		"fetched_at":  snap.Series.FetchedAt,
		"correlation": analytics.WeatherCorrelation(snap.Series),
	})
}
