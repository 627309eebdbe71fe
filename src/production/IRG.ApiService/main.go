package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.ApiService/controllers"
	container "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Container"
	importer "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Importer"
	predictor "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Predictor"
	resilience "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Resilience"
	weather "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Weather"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Info("Starting API Service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	readingRepo, err := ctr.GetReadingRepository(ctx)
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize reading store")
	}
	healthChecker, err := ctr.GetHealthChecker(ctx)
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize health checker")
	}

	loc, err := time.LoadLocation(config.Weather.Timezone)
	if err != nil {
		logger.WithError(err).Warn("Unknown WEATHER_TIMEZONE, using UTC")
		loc = time.UTC
	}

	// Relay-status model, trained per request
	pc := config.Predictor
	labelPredictor := predictor.NewLabelPredictor(
		predictor.Options{
			Seed:            pc.Seed,
			TestFraction:    pc.TestFraction,
			MinRows:         pc.MinRows,
			Trees:           pc.Trees,
			MaxDepth:        pc.MaxDepth,
			MinSamplesSplit: pc.MinSamplesSplit,
			Location:        loc,
		},
		predictor.ForecastOptions{
			ValueMin: pc.SyntheticMin,
			ValueMax: pc.SyntheticMax,
			Seed:     pc.ForecastSeed,
		},
	)

	// Open-Meteo client behind retry and circuit breaker, cached in MongoDB when configured
	breaker := resilience.NewCircuitBreaker(5, 30*time.Second)
	weatherClient := weather.NewClient(
		config.Weather.BaseURL,
		config.Weather.Timeout,
		resilience.NewRetrier(config.Weather.MaxRetries, config.Weather.RetryDelay, breaker),
	)
	weatherService := weather.NewService(
		weatherClient,
		ctr.GetWeatherRepository(ctx),
		weather.Query{
			Latitude:  config.Weather.Latitude,
			Longitude: config.Weather.Longitude,
			Timezone:  config.Weather.Timezone,
		},
		config.Mongo.CacheTTL,
		logger,
	)

	spreadsheetImporter := importer.New(importer.Options{
		SheetName: config.Import.SheetName,
		Location:  loc,
	})

	// Initialize Gin router
	router := gin.New()
	router.Use(logger.GinMiddleware())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	readingController := controllers.NewReadingController(readingRepo, loc, logger)
	importController := controllers.NewImportController(spreadsheetImporter, readingRepo, config.Import.MaxUploadBytes, config.Import.PreviewRows, logger)
	predictionController := controllers.NewPredictionController(readingRepo, labelPredictor, loc, logger)
	weatherController := controllers.NewWeatherController(weatherService, logger)
	analyticsController := controllers.NewAnalyticsController(readingRepo, logger)
	healthController := controllers.NewHealthController(healthChecker, readingRepo, logger)

	readingController.RegisterRoutes(router)
	importController.RegisterRoutes(router)
	predictionController.RegisterRoutes(router)
	weatherController.RegisterRoutes(router)
	analyticsController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
