package wire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gochat/internal/chat/handler"
	"gochat/internal/chat/repository"
	"gochat/internal/chat/service"
	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/dbmongo"
	"gochat/internal/dbmysql"
	"gochat/internal/directory"
	"gochat/internal/logger"
	"gochat/internal/metrics"
	"gochat/internal/ops"
	"gochat/internal/realtime"
)

// Application is everything cmd/chat-svc needs to run.
type Application struct {
	Config *config.Config
	Log    zerolog.Logger
	HTTP   http.Handler
	Ops    *ops.Server
	Hub    *realtime.Hub
}

func ProvideConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logger.Init(cfg.Logging)
}

// ProvideChatRepository opens the store selected by STORE_DRIVER.
func ProvideChatRepository(cfg *config.Config, log zerolog.Logger) (repository.ChatRepository, func(), error) {
	if cfg.Database.Driver == config.DriverMongo {
		mc, err := dbmongo.NewMongoConnection(cfg)
		if err != nil {
			return nil, nil, err
		}
		storage := dbmongo.NewChatStorage(mc)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := storage.EnsureIndexes(ctx); err != nil {
			_ = mc.Close(ctx)
			return nil, nil, err
		}

		log.Info().Str("driver", cfg.Database.Driver).Str("database", cfg.MongoDB.Database).Msg("connected to database")
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mc.Close(ctx); err != nil {
				log.Error().Err(err).Msg("failed to close mongodb")
			}
		}
		return storage, cleanup, nil
	}

	db, err := dbmysql.NewDatabase(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := dbmysql.Migrate(db); err != nil {
		_ = dbmysql.Close(db)
		return nil, nil, err
	}
	cleanup := func() {
		if err := dbmysql.Close(db); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
	return repository.NewChatRepository(db), cleanup, nil
}

func ProvidePinger(repo repository.ChatRepository) common.Pinger {
	return repo
}

func ProvideDirectory(cfg *config.Config, log zerolog.Logger) directory.Directory {
	return directory.NewAdminDirectory(cfg.Platform.URL, cfg.Platform.ServiceKey, cfg.Platform.Timeout, log)
}

func ProvideHub(cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (*realtime.Hub, func()) {
	hub := realtime.NewHub(cfg, m, log)
	return hub, hub.Shutdown
}

// ProvideNotifier returns the Redis broker when REDIS_ENABLED is set and the
// bare hub otherwise.
func ProvideNotifier(cfg *config.Config, hub *realtime.Hub, m *metrics.Metrics, log zerolog.Logger) (realtime.Notifier, func(), error) {
	if !cfg.Redis.Enabled {
		return hub, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := realtime.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	broker := realtime.NewRedisBroker(client, hub, m, log)
	if err := broker.Start(context.Background()); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = broker.Close()
		_ = client.Close()
	}
	return broker, cleanup, nil
}

func ProvidePublisher(n realtime.Notifier) common.MessagePublisher {
	return n
}

func ProvideAuthorizer(svc service.ChatService) realtime.Authorizer {
	return svc
}

func ProvideSocketHandler(n realtime.Notifier, auth realtime.Authorizer, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) *realtime.SocketHandler {
	return realtime.NewSocketHandler(n, auth, cfg.Server.AllowedOrigins, m, log)
}

func ProvideHTTPHandler(h *handler.ChatHandler, socket *realtime.SocketHandler, m *metrics.Metrics, cfg *config.Config, log zerolog.Logger) http.Handler {
	return handler.NewRouter(h, socket, m, cfg, log)
}
