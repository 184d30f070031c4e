// main.go
//
// Entry point for the Meeting Bingo server.
// Responsibilities:
//   - Load configuration (.env, optional YAML file, environment).
//   - Configure zerolog and load the vocabulary.
//   - Open the session store selected by STORE_DRIVER.
//   - Serve HTTP until SIGINT/SIGTERM, then shut down gracefully.
//   - Periodically prune sessions idle for longer than the token TTL.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/meeting-bingo/internal/config"
	"github.com/robalobadob/meeting-bingo/internal/httpserver"
	"github.com/robalobadob/meeting-bingo/internal/store"
	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

const pruneInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Log)

	if err := vocab.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open session store")
	}
	defer st.Close()

	if cfg.IsDevelopment() && cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	srv := httpserver.New(st, httpserver.Options{
		ClientOrigin:   cfg.Server.ClientOrigin,
		RequestTimeout: cfg.Server.RequestTimeout,
		Secret:         cfg.Secret(),
		TokenTTL:       cfg.Auth.TokenTTL,
		DailySalt:      cfg.Daily.Salt,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Env).Str("store", cfg.Store.Driver).Msg("starting meeting-bingo server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		prune(gctx, srv, cfg.Auth.TokenTTL)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// setupLogging applies the level and, when asked, human-readable output.
func setupLogging(c config.LogConfig) {
	if lvl, err := zerolog.ParseLevel(c.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func openStore(c config.StoreConfig) (store.Store, error) {
	if c.Driver == config.DriverSQLite {
		return store.OpenSQLite(c.SQLitePath)
	}
	return store.NewMemoryStore(), nil
}

// prune drops sessions nobody has touched for a full token lifetime; their
// tokens have expired so no client can reach them anyway.
func prune(ctx context.Context, srv *httpserver.Server, ttl time.Duration) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := srv.Prune(ctx, now.Add(-ttl))
			if err != nil {
				log.Warn().Err(err).Msg("prune sessions")
				continue
			}
			if n > 0 {
				log.Info().Int("count", n).Msg("pruned idle sessions")
			}
		}
	}
}
