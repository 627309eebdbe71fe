package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

const maxBatchSize = 5000

// ReadingController handles reading management requests
type ReadingController struct {
	readingRepo interfaces.ReadingRepository
	loc         *time.Location
	logger      *logger.Logger
	now         func() time.Time
}

// NewReadingController creates a new reading controller. loc is applied to
// timestamps sent without a zone.
func NewReadingController(readingRepo interfaces.ReadingRepository, loc *time.Location, logger *logger.Logger) *ReadingController {
	if loc == nil {
		loc = time.UTC
	}
	return &ReadingController{readingRepo: readingRepo, loc: loc, logger: logger, now: time.Now}
}

// RegisterRoutes registers the reading routes with Gin
func (c *ReadingController) RegisterRoutes(router *gin.Engine) {
	readings := router.Group("/readings")
	{
		readings.POST("", c.CreateReading)
		readings.POST("/batch", c.CreateReadings)
		readings.GET("", c.ListReadings)
		readings.GET("/:id", c.GetReading)
		readings.PATCH("/:id", c.UpdateReading)
		readings.DELETE("/:id", c.DeleteReading)
	}
}

// ReadingRequest is the JSON body for a new reading
type ReadingRequest struct {
	ID            int64    `json:"id_coleta"`
	Sensor        string   `json:"sensor" binding:"required"`
	Value         *float64 `json:"valor_coleta" binding:"required"`
	CollectedAt   string   `json:"data_hora_coleta"`
	RelayStatus   *int     `json:"status_rele"`
	TriggerReason string   `json:"motivo_acionamento"`
}

// BatchRequest is the JSON body of POST /readings/batch
type BatchRequest struct {
	Readings []ReadingRequest `json:"readings" binding:"required"`
}

// UpdateValueRequest is the JSON body of PATCH /readings/:id
type UpdateValueRequest struct {
	Value *float64 `json:"valor_coleta" binding:"required"`
}

// toReading validates the request. A missing timestamp means now.
func (c *ReadingController) toReading(req ReadingRequest) (irgmodels.Reading, error) {
	reading := irgmodels.Reading{
		ID:            req.ID,
		SensorName:    strings.TrimSpace(req.Sensor),
		TriggerReason: req.TriggerReason,
	}
	if reading.ID < 0 {
		return reading, fmt.Errorf("id_coleta must be positive")
	}
	if reading.SensorName == "" {
		return reading, fmt.Errorf("sensor is required")
	}
	if req.Value == nil {
		return reading, fmt.Errorf("valor_coleta is required")
	}
	reading.Value = *req.Value

	if req.CollectedAt == "" {
		reading.CollectedAt = c.now()
	} else {
		ts, err := irgmodels.ParseCollectedAt(req.CollectedAt, c.loc)
		if err != nil {
			return reading, err
		}
		reading.CollectedAt = ts
	}

	if req.RelayStatus != nil {
		if *req.RelayStatus != irgmodels.RelayOff && *req.RelayStatus != irgmodels.RelayOn {
			return reading, fmt.Errorf("status_rele must be 0 or 1")
		}
		reading.RelayStatus = irgmodels.IntPtr(*req.RelayStatus)
	}
	return reading, nil
}

func (c *ReadingController) CreateReading(ctx *gin.Context) {
	var req ReadingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading, err := c.toReading(req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.readingRepo.CreateReading(ctx.Request.Context(), &reading); err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusCreated, reading)
}

func (c *ReadingController) CreateReadings(ctx *gin.Context) {
	var req BatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Readings) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "readings must not be empty"})
		return
	}
	if len(req.Readings) > maxBatchSize {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d readings per batch", maxBatchSize)})
		return
	}

	readings := make([]irgmodels.Reading, 0, len(req.Readings))
	for i, r := range req.Readings {
		reading, err := c.toReading(r)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i})
			return
		}
		readings = append(readings, reading)
	}

	n, err := c.readingRepo.CreateReadings(ctx.Request.Context(), readings)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "inserted": n})
}

func (c *ReadingController) ListReadings(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(interfaces.DefaultPageSize)))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}

	params := interfaces.ReadingQueryParams{
		Sensor: ctx.Query("sensor"),
		Limit:  limit,
		Page:   page,
	}
	if fromStr := ctx.Query("from"); fromStr != "" {
		from, err := irgmodels.ParseCollectedAt(fromStr, c.loc)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
			return
		}
		params.From = &from
	}
	if toStr := ctx.Query("to"); toStr != "" {
		to, err := irgmodels.ParseCollectedAt(toStr, c.loc)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
			return
		}
		params.To = &to
	}

	result, err := c.readingRepo.ListReadings(ctx.Request.Context(), params)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *ReadingController) GetReading(ctx *gin.Context) {
	id, ok := readingID(ctx)
	if !ok {
		return
	}

	reading, err := c.readingRepo.GetReading(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, reading)
}

func (c *ReadingController) UpdateReading(ctx *gin.Context) {
	id, ok := readingID(ctx)
	if !ok {
		return
	}

	var req UpdateValueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Value < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "valor_coleta must not be negative"})
		return
	}

	if err := c.readingRepo.UpdateReadingValue(ctx.Request.Context(), id, *req.Value); err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	logger.FromGin(ctx, c.logger).WithField("id_coleta", id).Info("Reading value updated")
	ctx.JSON(http.StatusOK, gin.H{"success": true, "id_coleta": id, "valor_coleta": *req.Value})
}

func (c *ReadingController) DeleteReading(ctx *gin.Context) {
	id, ok := readingID(ctx)
	if !ok {
		return
	}

	if err := c.readingRepo.DeleteReading(ctx.Request.Context(), id); err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	logger.FromGin(ctx, c.logger).WithField("id_coleta", id).Info("Reading deleted")
	ctx.Status(http.StatusNoContent)
}

func readingID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
