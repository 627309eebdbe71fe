package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	importer "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Importer"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	predictor "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Predictor"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

// respondError maps domain errors to HTTP status codes. Unknown errors are
// logged and reported as 500.
func respondError(ctx *gin.Context, log *logger.Logger, err error) {
	var (
		insufficient *predictor.InsufficientDataError
		missing      *importer.MissingColumnsError
	)
	switch {
	case errors.Is(err, interfaces.ErrReadingNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, interfaces.ErrReadingExists):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &insufficient):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "details": insufficient})
	case errors.Is(err, predictor.ErrModelNotTrained):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &missing):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "missing_columns": missing.Columns})
	case errors.Is(err, importer.ErrUnsupportedFormat), errors.Is(err, importer.ErrEmptyFile):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromGin(ctx, log).ErrorWithError(err, "Request failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
