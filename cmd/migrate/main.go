// Command migrate creates the chat tables, collections and indexes for the
// configured STORE_DRIVER and exits.
package main

import (
	"context"
	"time"

	"gochat/internal/config"
	"gochat/internal/dbmongo"
	"gochat/internal/dbmysql"
	"gochat/internal/logger"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.Init(cfg.Logging)

	if cfg.Database.Driver == config.DriverMongo {
		mc, err := dbmongo.NewMongoConnection(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongodb")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		defer mc.Close(ctx)

		if err := dbmongo.NewChatStorage(mc).EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create mongodb indexes")
		}
		log.Info().Str("database", cfg.MongoDB.Database).Msg("mongodb indexes ready")
		return
	}

	db, err := dbmysql.NewDatabase(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer dbmysql.Close(db)

	if err := dbmysql.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")
}
