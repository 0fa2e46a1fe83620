package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/davidgrc/songdle/internal/catalog"
	"github.com/davidgrc/songdle/internal/httpserver"
	"github.com/davidgrc/songdle/internal/provider"
	"github.com/davidgrc/songdle/internal/store"
)

const releaseVersion = "0.1.0"

func main() {
	_ = godotenv.Load()
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func run(ctx context.Context, cfg *Config) error {
	if lvl, err := zerolog.ParseLevel(cfg.logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(cfg.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st := store.New(db)

	if cfg.seedFile != "" {
		if err := seedLocalCatalog(ctx, st, cfg.seedFile); err != nil {
			return err
		}
	}

	cat := catalog.New(st, provider.New(provider.Config{APIURL: cfg.providerAPI}))

	if pool := cfg.dailyTracks(); len(pool) > 0 {
		if err := cat.RotateDaily(ctx, pool, cfg.dailySalt, time.Now()); err != nil {
			return fmt.Errorf("daily rotation: %w", err)
		}
		go rotateDailyLoop(ctx, cat, pool, cfg.dailySalt)
	}

	srv := httpserver.New(st, cat, httpserver.Config{
		JWTSecret:    cfg.jwtSecret,
		JWTExpiry:    cfg.jwtExpiry,
		ClientOrigin: cfg.clientOrigin,
	})

	addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
	log.Info().Str("addr", addr).Msg("starting songdle server")
	return srv.Start(addr)
}

// rotateDailyLoop re-picks the daily song once an hour so the swap lands
// shortly after the UTC day rolls over.
func rotateDailyLoop(ctx context.Context, cat *catalog.Service, pool []string, salt string) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := cat.RotateDaily(ctx, pool, salt, now); err != nil {
				log.Warn().Err(err).Msg("daily rotation failed")
			}
		}
	}
}
