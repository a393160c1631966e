package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/config"
	"github.com/garyjia/canteen-ops/internal/export"
	httpserver "github.com/garyjia/canteen-ops/internal/interfaces/http"
	"github.com/garyjia/canteen-ops/internal/proxy"
	"github.com/garyjia/canteen-ops/internal/upstream"
	"github.com/garyjia/canteen-ops/pkg/utils"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "canteen-ops",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting canteen-ops proxy",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auth_token_set", cfg.Upstream.AuthToken != ""))

	// Upstream clients
	dataClient := upstream.NewClient(upstream.Options{
		Name:               "ords",
		AuthToken:          cfg.Upstream.AuthToken,
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
		Timeout:            cfg.Upstream.Timeout,
	}, logger)

	predictionClient := upstream.NewClient(upstream.Options{
		Name:               "prediction",
		InsecureSkipVerify: cfg.Prediction.InsecureSkipVerify,
		Timeout:            cfg.Prediction.Timeout,
	}, logger)

	proxyService := proxy.NewService(dataClient, predictionClient, proxy.Endpoints{
		AttendanceGet:  cfg.Upstream.AttendanceGetURL,
		AttendanceSave: cfg.Upstream.AttendanceSaveURL,
		ExpenseGet:     cfg.Upstream.ExpenseGetURL,
		ExpenseSave:    cfg.Upstream.ExpenseSaveURL,
		Ingredients:    cfg.Upstream.IngredientsURL,
		Prediction:     cfg.Prediction.URL,
	}, logger)

	exporter := export.NewExporter(logger)

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}, proxyService, exporter, logger)

	// Run until SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}
