package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/auth"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/config"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/db"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/events"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/handlers"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/ledger"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/logging"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

const demoCarID = "demo-car"

// app holds the wired server and whatever must be released on shutdown.
type app struct {
	handler  http.Handler
	users    db.UserCollection
	expenses db.ExpenseCollection
	closers  []func(context.Context)
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	switch cfg.StorageBackend {
	case config.BackendMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				log.WithError(err).Warn("Failed to disconnect from MongoDB")
			}
		})
		database := client.Database(cfg.MongoDB)
		if err := ensureIndexes(ctx, database); err != nil {
			a.close(ctx)
			return nil, err
		}
		a.expenses = &db.MongoExpenseCollection{Collection: database.Collection("expenses")}
		a.users = &db.MongoUserCollection{Collection: database.Collection("users")}
		log.WithField("database", cfg.MongoDB).Info("Using MongoDB storage")
	default:
		a.expenses = db.NewMemoryExpenseCollection(nil)
		a.users = db.NewMemoryUserCollection()
		log.Info("Using in-memory storage")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.MQTTBroker != "" {
		mqttPublisher, err := events.NewMQTTPublisher(events.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) { mqttPublisher.Close() })
		publisher = mqttPublisher
	} else {
		log.Info("MQTT_BROKER not set, expense events are not published")
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	if cfg.SeedDemoData {
		if err := seedDemo(ctx, cfg, authService, a.users, a.expenses); err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	a.handler = handlers.NewRouter(handlers.RouterConfig{
		Auth:              authService,
		Users:             a.users,
		Ledger:            ledger.NewService(a.expenses, publisher, time.Now),
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		TrustProxy:        cfg.TrustProxy,
	})
	return a, nil
}

func ensureIndexes(ctx context.Context, database *mongo.Database) error {
	if err := db.EnsureExpenseIndexes(ctx, database.Collection("expenses")); err != nil {
		return err
	}
	if err := db.EnsureUserIndexes(ctx, database.Collection("users")); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// seedDemo creates the demo customer and its fixture expenses. An existing
// demo user is left untouched so restarts do not duplicate the fixture.
func seedDemo(ctx context.Context, cfg *config.Config, authService *auth.Service, users db.UserCollection, expenses db.ExpenseCollection) error {
	existing, err := users.FindUserByUsername(ctx, cfg.DemoUsername)
	if err == nil {
		log.WithField("user_id", existing.ID.Hex()).Info("Demo user already present, skipping seed")
		return nil
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		return fmt.Errorf("look up demo user: %w", err)
	}

	hash, err := authService.HashPassword(cfg.DemoPassword)
	if err != nil {
		return err
	}
	user := models.User{
		Username:     cfg.DemoUsername,
		Email:        cfg.DemoUsername + "@demo.local",
		PasswordHash: hash,
		Role:         models.RoleCustomer,
		FirstName:    "Demo",
		LastName:     "Driver",
		IsActive:     true,
	}
	if err := users.InsertUser(ctx, user); err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}
	created, err := users.FindUserByUsername(ctx, cfg.DemoUsername)
	if err != nil {
		return fmt.Errorf("reload demo user: %w", err)
	}

	seeded, err := db.SeedExpenses(ctx, expenses, created.ID.Hex(), demoCarID, time.Now())
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":  created.ID.Hex(),
		"expenses": len(seeded),
	}).Info("Seeded demo data")
	return nil
}

func main() {
	cfg := config.Load()
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Fatal("Invalid logging configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Configuration validation failed")
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("JWT_SECRET is not set, using the built-in development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to start")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
	}
	a.close(shutdownCtx)
}
