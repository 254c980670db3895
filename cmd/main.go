package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/logger"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/notify"
)

const limiterCleanupInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	logrus.SetLevel(log.GetLevel())
	logrus.SetFormatter(log.Formatter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := db.ConnectMongo(connectCtx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(connectCtx, database); err != nil {
		return err
	}

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	service := maintenance.NewService(
		&db.MongoRuleCollection{Collection: database.Collection(db.RulesCollection)},
		&db.MongoVehicleCollection{Collection: database.Collection(db.VehiclesCollection)},
		&db.MongoRecordCollection{Collection: database.Collection(db.RecordsCollection)},
		cfg.Thresholds,
		maintenance.WithLogger(log),
		maintenance.WithPublisher(publisher),
	)
	users := &db.MongoUserCollection{Collection: database.Collection(db.UsersCollection)}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx, limiterCleanupInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(cfg, log, service, users, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// newHandler assembles the routes and the middleware stack. Request ids are assigned
// first so every later layer can log them.
func newHandler(cfg *config.Config, log logrus.FieldLogger, service handlers.MaintenanceService, users db.UserCollection, limiter *middleware.RateLimiter) http.Handler {
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	authMW := middleware.NewAuthMiddleware(authService)

	router := &handlers.Router{
		Maintenance: handlers.NewMaintenanceHandler(service),
		Rules:       handlers.NewRuleHandler(service),
		Vehicles:    handlers.NewVehicleHandler(service),
		Auth:        handlers.NewAuthHandler(authService, users),
		AuthMW:      authMW,
	}

	return middleware.Chain(router.Routes(),
		middleware.RequestID,
		middleware.Logging(log),
		limiter.Middleware,
		authMW.Authenticate,
	)
}

// newPublisher connects to the MQTT broker when one is configured. A broker that cannot
// be reached is logged and events are dropped; the API keeps serving.
func newPublisher(cfg *config.Config, log logrus.FieldLogger) (notify.Publisher, func()) {
	if cfg.MQTTBroker == "" {
		log.Info("MQTT broker not configured, lifecycle events disabled")
		return notify.Nop{}, func() {}
	}

	publisher, err := notify.ConnectMQTT(mqttConfig(cfg))
	if err != nil {
		log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("Failed to connect to MQTT broker, lifecycle events disabled")
		return notify.Nop{}, func() {}
	}
	return publisher, publisher.Close
}

func mqttConfig(cfg *config.Config) notify.MQTTConfig {
	return notify.MQTTConfig{
		Broker:         cfg.MQTTBroker,
		ClientID:       cfg.MQTTClientID,
		Username:       cfg.MQTTUsername,
		Password:       cfg.MQTTPassword,
		TopicPrefix:    cfg.MQTTTopicPrefix,
		QoS:            byte(cfg.MQTTQoS),
		ConnectTimeout: 5 * time.Second,
	}
}
