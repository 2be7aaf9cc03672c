// Command arcadepayd runs the arcade payment server: the HTTP API for
// quoting and registering payments plus the background confirmer that
// settles pending records against the chain.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thisyearnofear/writersarcade-sub002/config"
	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/metrics"
	"github.com/thisyearnofear/writersarcade-sub002/pricing"
	"github.com/thisyearnofear/writersarcade-sub002/server"
	"github.com/thisyearnofear/writersarcade-sub002/store"
	"github.com/thisyearnofear/writersarcade-sub002/verification"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog := logger.NewZapLogger(cfg.LogLevel)

	registry, err := config.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("load token registry: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	records, err := store.NewGormStore(db)
	if err != nil {
		log.Fatalf("migrate payment store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eth, err := ethclient.DialContext(ctx, cfg.RPCUrl)
	if err != nil {
		log.Fatalf("dial rpc node %s: %v", cfg.RPCUrl, err)
	}
	defer eth.Close()

	chainSplits, err := pricing.NewChainSplitSource(eth)
	if err != nil {
		log.Fatalf("build chain split source: %v", err)
	}
	splits := pricing.NewFallbackSplitSource(chainSplits, pricing.StaticSplitSource{}, zlog)
	calc := pricing.NewCalculator(registry, splits)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.EnableMetrics {
		recorder = metrics.NewPrometheusRecorder()
	}

	svc := verification.NewService(records, calc, zlog, recorder)

	confirmer := verification.NewConfirmer(svc, eth, cfg.ContractAddress, cfg.PollInterval, cfg.ConfirmWorkers)
	go confirmer.Run(ctx)

	opts := []server.Option{server.WithLogger(zlog)}
	if cfg.EnableMetrics {
		opts = append(opts, server.WithMetricsEndpoint())
	}
	srv := server.New(svc, cfg.ContractAddress, cfg.ChainID, opts...)

	go func() {
		zlog.Info("server listening", map[string]any{"addr": cfg.ListenAddress})
		if err := srv.Listen(cfg.ListenAddress); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	zlog.Info("shutting down", nil)
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
