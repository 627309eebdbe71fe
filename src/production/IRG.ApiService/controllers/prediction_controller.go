package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	predictor "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Predictor"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

// PredictionController trains the relay-status model on request and returns its forecast
type PredictionController struct {
	readingRepo interfaces.ReadingRepository
	predictor   *predictor.LabelPredictor
	loc         *time.Location
	logger      *logger.Logger
	now         func() time.Time
}

// NewPredictionController creates a new prediction controller
func NewPredictionController(readingRepo interfaces.ReadingRepository, p *predictor.LabelPredictor, loc *time.Location, logger *logger.Logger) *PredictionController {
	if loc == nil {
		loc = time.UTC
	}
	return &PredictionController{readingRepo: readingRepo, predictor: p, loc: loc, logger: logger, now: time.Now}
}

// RegisterRoutes registers the prediction routes with Gin
func (c *PredictionController) RegisterRoutes(router *gin.Engine) {
	router.POST("/predictions/forecast", c.Forecast)
}

// ForecastRequest is the optional JSON body of POST /predictions/forecast.
// Without rows the stored readings are used.
type ForecastRequest struct {
	Rows          []predictor.Observation `json:"rows"`
	ReferenceDate string                  `json:"reference_date"`
	Seed          *int64                  `json:"seed"`
	ForecastSeed  int64                   `json:"forecast_seed"`
}

// ForecastResponse is the body returned by POST /predictions/forecast
type ForecastResponse struct {
	Source        string                    `json:"source"`
	ReferenceDate string                    `json:"reference_date"`
	Training      *predictor.TrainingReport `json:"training"`
	Forecast      []predictor.ForecastRow   `json:"forecast"`
}

func (c *PredictionController) Forecast(ctx *gin.Context) {
	var req ForecastRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ref := c.now().In(c.loc)
	if req.ReferenceDate != "" {
		parsed, err := parseReferenceDate(req.ReferenceDate, c.loc)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference_date: " + err.Error()})
			return
		}
		ref = parsed
	}

	source := "request"
	rows := req.Rows
	if rows == nil {
		source = "database"
		readings, err := c.readingRepo.AllReadings(ctx.Request.Context())
		if err != nil {
			respondError(ctx, c.logger, err)
			return
		}
		rows = predictor.ObservationsFromReadings(readings, c.loc)
	}

	res, err := c.predictor.Run(predictor.RunRequest{
		Rows:          rows,
		ReferenceDate: ref,
		Seed:          req.Seed,
		ForecastSeed:  req.ForecastSeed,
	})
	var insufficient *predictor.InsufficientDataError
	if errors.As(err, &insufficient) && res != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    err.Error(),
			"details":  insufficient,
			"training": res.Report,
		})
		return
	}
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	logger.FromGin(ctx, c.logger).WithFields(map[string]interface{}{
		"source":   source,
		"rows":     res.Report.UsableRows,
		"excluded": len(res.Report.Excluded),
		"accuracy": res.Report.Accuracy,
	}).Info("Relay forecast computed")

	ctx.JSON(http.StatusOK, ForecastResponse{
		Source:        source,
		ReferenceDate: ref.Format("2006-01-02"),
		Training:      res.Report,
		Forecast:      res.Forecast,
	})
}

func parseReferenceDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
