package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nident/identity-server/auth"
	"github.com/nident/identity-server/clients/fakerepo"
	"github.com/nident/identity-server/hashing"
	"github.com/nident/identity-server/internal/config"
	"github.com/nident/identity-server/internal/resettoken"
	"github.com/nident/identity-server/internal/store/redisstore"
	"github.com/nident/identity-server/server"
	"github.com/nident/identity-server/tenants/repofakes"
	"github.com/nident/identity-server/token"
	fakeuserrepo "github.com/nident/identity-server/users/repofake"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("server stopped")
}

func run(logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	displayAppName(cfg.AppName)

	keyPair, err := loadKeyPair(cfg, logger)
	if err != nil {
		return err
	}
	codec, err := token.NewCodec(keyPair)
	if err != nil {
		return err
	}
	hasher := hashing.New(cfg.HashParams(), cfg.HashMaxConcurrent)

	repos, err := buildRepos(cfg, logger)
	if err != nil {
		return err
	}
	grants, err := auth.NewGrantService(repos, hasher, codec, cfg.AccessTokenLifetime, cfg.RefreshTokenLifetime)
	if err != nil {
		return err
	}

	handler, err := server.New(cfg, repos, grants, hasher, keyPair, resettoken.NewStore(cfg.ResetTokenLifetime), logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	return shutdown(httpServer)
}

// loadKeyPair resolves the configured PEM material, falling back to an
// ephemeral key pair. Ephemeral keys invalidate every outstanding token on
// restart, which is acceptable for development only.
func loadKeyPair(cfg *config.Config, logger zerolog.Logger) (*token.KeyPair, error) {
	privatePEM, publicPEM, err := cfg.KeyMaterial()
	if err != nil {
		return nil, err
	}
	if privatePEM == "" {
		logger.Warn().Msg("no signing key configured, generating an ephemeral key pair")
		return token.GenerateKeyPair(cfg.SigningKeyID, 2048)
	}
	return token.LoadKeyPairFromPEM(cfg.SigningKeyID, privatePEM, publicPEM)
}

func buildRepos(cfg *config.Config, logger zerolog.Logger) (auth.Repos, error) {
	if cfg.RedisAddr == "" {
		logger.Warn().Msg("no redis address configured, using in-memory stores")
		return auth.Repos{
			Tenants: repofakes.NewFakeTenantRepo(),
			Clients: fakerepo.NewFakeClientRepo(),
			Users:   fakeuserrepo.NewFakeUserRepo(),
		}, nil
	}

	store := redisstore.New(cfg.RedisAddr, cfg.RedisDB)
	if err := store.Ping(); err != nil {
		return auth.Repos{}, errors.Wrap(err, "[buildRepos] redis ping")
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	return auth.Repos{
		Tenants: store.Tenants(),
		Clients: store.Clients(),
		Users:   store.Users(),
	}, nil
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("listen and serve")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "[shutdown] httpServer.Shutdown")
	}
	return nil
}

func displayAppName(appName string) {
	figure.NewFigure(appName, "cybermedium", true).Print()
	fmt.Println()
}
