//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"gochat/internal/chat/handler"
	"gochat/internal/chat/repository"
	"gochat/internal/chat/service"
	"gochat/internal/dbmongo"
	"gochat/internal/media"
	"gochat/internal/metrics"
	"gochat/internal/notif"
	"gochat/internal/ws"
)

var storageSet = wire.NewSet(
	ProvideMongo,
	dbmongo.NewMediaStorage,
	wire.Bind(new(media.Storage), new(*dbmongo.MediaStorage)),
	media.NewHTTPServer,
)

func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		ProvideConfig,
		metrics.New,
		ProvideDatabase,
		storageSet,
		wire.Bind(new(service.MediaRemover), new(*dbmongo.MediaStorage)),
		ws.NewHubFromConfig,
		wire.Bind(new(notif.Registry), new(*ws.Hub)),
		ProvideNotificationManager,
		notif.NewDeliveryNotifier,
		wire.Bind(new(service.Notifier), new(*notif.DeliveryNotifier)),
		repository.NewMessageRepository,
		ProvideAggregator,
		service.NewChatService,
		handler.NewChatHandler,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}

func InitializeMediaServer() (*MediaApplication, func(), error) {
	wire.Build(
		ProvideConfig,
		metrics.New,
		storageSet,
		wire.Struct(new(MediaApplication), "*"),
	)
	return nil, nil, nil
}
