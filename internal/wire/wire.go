//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"gochat/internal/chat/handler"
	"gochat/internal/chat/service"
	"gochat/internal/identity"
	"gochat/internal/metrics"
	"gochat/internal/ops"
)

func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		metrics.New,
		ProvideChatRepository,
		ProvidePinger,
		identity.NewVerifier,
		ProvideDirectory,
		ProvideHub,
		ProvideNotifier,
		ProvidePublisher,
		service.NewResolver,
		service.NewChatService,
		ProvideAuthorizer,
		ProvideSocketHandler,
		handler.NewChatHandler,
		ProvideHTTPHandler,
		ops.NewServer,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}
