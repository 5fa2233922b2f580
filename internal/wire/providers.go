package wire

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"gochat/internal/chat/conversation"
	"gochat/internal/chat/handler"
	"gochat/internal/chat/repository"
	"gochat/internal/config"
	"gochat/internal/dbmongo"
	"gochat/internal/dbmysql"
	"gochat/internal/media"
	"gochat/internal/metrics"
	"gochat/internal/notif"
	"gochat/internal/ws"
)

// Application is everything cmd/chat-svc needs to serve.
type Application struct {
	Config   *config.Config
	DB       *gorm.DB
	Mongo    *dbmongo.MongoClient
	Messages repository.MessageRepository
	Hub      *ws.Hub
	Handler  *handler.ChatHandler
	Media    *media.HTTPServer
	Metrics  *metrics.Metrics
}

// MediaApplication backs the standalone media server.
type MediaApplication struct {
	Config  *config.Config
	Mongo   *dbmongo.MongoClient
	Server  *media.HTTPServer
	Metrics *metrics.Metrics
}

func ProvideConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := dbmysql.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			}
		}
	}
	return db, cleanup, nil
}

func ProvideMongo(cfg *config.Config) (*dbmongo.MongoClient, func(), error) {
	client, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(ctx); err != nil {
			log.Printf("Error closing MongoDB: %v", err)
		}
	}
	return client, cleanup, nil
}

// ProvideNotificationManager wires the delivery observers.
func ProvideNotificationManager(m *metrics.Metrics) *notif.Manager {
	manager := notif.NewManager()
	manager.Subscribe(notif.NewMetricsObserver(m))
	manager.Subscribe(notif.NewLogObserver())
	return manager
}

func ProvideAggregator(repo repository.MessageRepository) *conversation.Aggregator {
	return conversation.NewAggregator(repo)
}
