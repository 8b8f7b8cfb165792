package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"isolend/config"
	"isolend/core/events"
	"isolend/core/state"
	"isolend/native/auction"
	"isolend/native/lending"
	"isolend/native/oracle"
	"isolend/observability"
	"isolend/observability/logging"
	"isolend/rpc"
	"isolend/storage"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memory := flag.Bool("memory", false, "DEV ONLY: use an in-memory database instead of LevelDB")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	logger := logging.Setup("isolendd", cfg.Env)

	db, err := openDatabase(cfg, *memory)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	manager := state.NewManager(db)

	emitter := observability.NewMetricsEmitter(events.NoopEmitter{})

	model, err := cfg.RatesModel()
	if err != nil {
		logger.Error("Failed to build rate model", slog.Any("error", err))
		os.Exit(1)
	}

	router := oracle.NewRouter(ethcommon.HexToAddress(cfg.Factory))
	router.SetEmitter(emitter)
	settings, err := cfg.OracleSettings()
	if err != nil {
		logger.Error("Failed to build oracle settings", slog.Any("error", err))
		os.Exit(1)
	}
	for _, setting := range settings {
		if err := router.SetConfig(ethcommon.HexToAddress(cfg.Factory), setting.Token, setting.Config); err != nil {
			logger.Error("Failed to configure oracle", slog.String("token", setting.Token.Hex()), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Oracle configured", slog.String("token", setting.Token.Hex()))
	}

	engine, err := auction.NewEngine(cfg.AuctionConfig(), ethcommon.HexToAddress(cfg.Liquidator))
	if err != nil {
		logger.Error("Failed to build auction engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetState(manager)
	engine.SetOracle(router)
	engine.SetEmitter(emitter)

	ledger := lending.NewMemoryLedger()
	server := rpc.NewServer(engine, router, logger)

	for _, marketCfg := range cfg.MarketConfigs() {
		pool, err := lending.NewPool(marketCfg, model)
		if err != nil {
			logger.Error("Failed to build pool", slog.String("market", marketCfg.Key), slog.Any("error", err))
			os.Exit(1)
		}
		pool.SetState(manager)
		pool.SetLedger(ledger)
		pool.SetOracle(router)
		pool.SetEmitter(emitter)

		// Seed the market record on first boot.
		existing, err := manager.GetMarket(marketCfg.Key)
		if err != nil {
			logger.Error("Failed to read market", slog.String("market", marketCfg.Key), slog.Any("error", err))
			os.Exit(1)
		}
		if existing == nil {
			if err := manager.PutMarket(marketCfg.Key, lending.NewMarket()); err != nil {
				logger.Error("Failed to seed market", slog.String("market", marketCfg.Key), slog.Any("error", err))
				os.Exit(1)
			}
		}

		engine.RegisterPool(pool)
		server.AddPool(pool)
		logger.Info("Market registered", slog.String("market", marketCfg.Key))
	}

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API listening", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
}

func openDatabase(cfg *config.Config, memory bool) (storage.Database, error) {
	if memory {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewLevelDB(filepath.Join(cfg.DataDir, "isolend"))
}
