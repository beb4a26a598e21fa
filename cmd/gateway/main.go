package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/api"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/gateway"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/hub"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/market"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/repository"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/catalog"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	repo := repository.NewRedisStore(rdb)

	seed, err := catalog.Load()
	if err != nil {
		logger.Fatal("Failed to load seed catalog", zap.Error(err))
	}

	resolver := market.NewResolver(repo, seed)
	streamer := market.NewStreamer(resolver, market.RealClock{})
	limiter := repository.NewIPRateLimiter(cfg.Stream.RateLimitRPS, cfg.Stream.RateBurst)

	// Hub validates subscriptions through the resolver, so symbols that
	// only exist in the seed catalog are also subscribable
	wsHub := hub.NewHub(repo, resolver.IsSupported, logger)

	mux := http.NewServeMux()
	api.NewHandler(resolver, streamer, limiter, logger, cfg.Stream).Register(mux)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		client := gateway.NewClient(conn, wsHub, logger)
		client.Start()
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	logger.Info("Shutdown Complete")
}
