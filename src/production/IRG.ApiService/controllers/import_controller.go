package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	importer "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Importer"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

// ImportController handles spreadsheet uploads
type ImportController struct {
	importer       *importer.Importer
	readingRepo    interfaces.ReadingRepository
	maxUploadBytes int64
	previewRows    int
	logger         *logger.Logger
}

// NewImportController creates a new import controller
func NewImportController(imp *importer.Importer, readingRepo interfaces.ReadingRepository, maxUploadBytes int64, previewRows int, logger *logger.Logger) *ImportController {
	return &ImportController{
		importer:       imp,
		readingRepo:    readingRepo,
		maxUploadBytes: maxUploadBytes,
		previewRows:    previewRows,
		logger:         logger,
	}
}

// RegisterRoutes registers the import routes with Gin
func (c *ImportController) RegisterRoutes(router *gin.Engine) {
	imports := router.Group("/imports")
	{
		imports.POST("/preview", c.Preview)
		imports.POST("", c.Commit)
	}
}

// parseUpload reads the multipart "file" field. It writes the error response itself.
func (c *ImportController) parseUpload(ctx *gin.Context) (*importer.Result, bool) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadBytes)

	fh, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required: " + err.Error()})
		return nil, false
	}
	if fh.Size > c.maxUploadBytes {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		respondError(ctx, c.logger, err)
		return nil, false
	}
	defer f.Close()

	res, err := c.importer.Parse(f, fh.Filename)
	if err != nil {
		respondError(ctx, c.logger, err)
		return nil, false
	}
	return res, true
}

// Preview parses the upload without storing it and returns the first rows
func (c *ImportController) Preview(ctx *gin.Context) {
	rows := c.previewRows
	if raw := ctx.Query("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid rows"})
			return
		}
		rows = n
	}

	res, ok := c.parseUpload(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"batch_id":       res.BatchID,
		"format":         res.Format,
		"sheet":          res.Sheet,
		"columns":        res.Columns,
		"total_rows":     res.TotalRows,
		"accepted_count": len(res.Accepted),
		"rejected_count": len(res.Rejected),
		"preview":        res.Preview(rows).Accepted,
		"rejected":       res.Rejected,
	})
}

// Commit parses the upload and stores every accepted row in one transaction
func (c *ImportController) Commit(ctx *gin.Context) {
	res, ok := c.parseUpload(ctx)
	if !ok {
		return
	}

	inserted := 0
	if len(res.Accepted) > 0 {
		n, err := c.readingRepo.CreateReadings(ctx.Request.Context(), res.Accepted)
		if err != nil {
			respondError(ctx, c.logger, err)
			return
		}
		inserted = n
	}

	logger.FromGin(ctx, c.logger).WithFields(map[string]interface{}{
		"batch_id": res.BatchID,
		"inserted": inserted,
		"rejected": len(res.Rejected),
	}).Info("Spreadsheet imported")

	ctx.JSON(http.StatusCreated, gin.H{
		"batch_id":   res.BatchID,
		"format":     res.Format,
		"total_rows": res.TotalRows,
		"inserted":   inserted,
		"rejected":   res.Rejected,
	})
}
