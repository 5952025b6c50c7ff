package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/archive"
	"github.com/hamzarauf/swapdesk/internal/benchmark"
	"github.com/hamzarauf/swapdesk/internal/config"
	"github.com/hamzarauf/swapdesk/internal/feeds"
	"github.com/hamzarauf/swapdesk/internal/history"
	"github.com/hamzarauf/swapdesk/internal/ledger"
	"github.com/hamzarauf/swapdesk/internal/registry"
	"github.com/hamzarauf/swapdesk/internal/server"
	"github.com/hamzarauf/swapdesk/internal/session"
	"github.com/hamzarauf/swapdesk/internal/token"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main initializes all dependencies and starts the HTTP server with
// graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.FeePayerKey == "" {
		logger.Fatal("FEE_PAYER_PRIVATE_KEY is required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize the custodial fee-payer wallet and node connection
	w, err := wallet.New(wallet.Config{
		RPCURL:       cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		FeePayerKey:  cfg.FeePayerKey,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create wallet")
	}
	defer w.Close()

	// Initialize Redis client for the persistence ledger
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	led, err := ledger.New(rclient, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create ledger")
	}

	// Initialize ClickHouse swap archive (optional)
	var arch *archive.Archive
	if cfg.ClickHouseAddr != "" {
		a, err := archive.New(archive.Options{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("swap archive unavailable, continuing without it")
		} else {
			arch = a
			defer arch.Close()
		}
	}

	// Pool catalog and pricing adapter
	reg := registry.New(registry.Config{
		CatalogURL: cfg.CatalogURL,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})
	adapter := amm.NewLiveAdapter(w.RPC())

	sess, err := session.New(session.Options{
		Registry: reg,
		Adapter:  adapter,
		Node:     w,
		FeePayer: w.PrivateKey(),
		Ledger:   led,
		Archive:  arch,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create session")
	}

	// Background feeds: benchmark price, wallet balances, tx history.
	// Each fails and retries on its own.
	bench := benchmark.NewClient(cfg.BenchmarkPairURL, cfg.BenchmarkTokenURL)
	poller := feeds.NewPoller(logger)

	mustRegister := func(name string, err error) {
		if err != nil {
			logger.WithError(err).WithField("feed", name).Fatal("failed to register feed")
		}
	}

	mustRegister("price", poller.Register("price", cfg.PriceInterval, func(ctx context.Context) error {
		p, err := bench.FetchPrice(ctx, cfg.BenchmarkPair, token.SOL.Mint.String())
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"price_usd": p.PriceUSD,
			"source":    p.Source,
		}).Debug("benchmark price refreshed")
		return nil
	}))

	mustRegister("balances", poller.Register("balances", cfg.BalanceInterval, func(ctx context.Context) error {
		// Authoritative reads supersede the optimistic ledger.
		sol, err := w.GetBalanceSOL(ctx)
		if err != nil {
			return err
		}
		if _, err := led.SyncBalance(ctx, w.Address(), token.SOL.Symbol, sol); err != nil {
			return err
		}

		usdcRaw, err := w.GetTokenBalance(ctx, w.PublicKey(), token.USDC.Mint)
		if err != nil {
			return err
		}
		_, err = led.SyncBalance(ctx, w.Address(), token.USDC.Symbol, token.USDC.FromBaseUnits(usdcRaw))
		return err
	}))

	// The tracker reconciles ledger balances against what confirmed
	// transactions actually moved.
	tracker, err := history.NewTracker(history.Options{
		Fetcher: w.RPC(),
		Sink:    led,
		Owner:   w.Address(),
		Limit:   20,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create history tracker")
	}
	mustRegister("history", poller.Register("history", cfg.HistoryInterval, tracker.Refresh))

	if err := poller.Start(ctx); err != nil {
		logger.WithError(err).Fatal("failed to start feeds")
	}
	defer poller.Stop()

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Session:  sess,
		Ledger:   led,
		Poller:   poller,
		Registry: reg,
		History:  tracker,
		Archive:  arch,
		DevMode:  cfg.DevMode,
		Logger:   logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr":      cfg.APIAddr,
		"fee_payer": w.Address(),
	}).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
