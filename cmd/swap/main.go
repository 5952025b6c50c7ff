package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/config"
	"github.com/hamzarauf/swapdesk/internal/ledger"
	"github.com/hamzarauf/swapdesk/internal/registry"
	"github.com/hamzarauf/swapdesk/internal/session"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "quote", "quote | simulate | execute")
	inTok := flag.String("in", "SOL", "input token symbol (e.g. SOL)")
	outTok := flag.String("out", "USDC", "output token symbol (e.g. USDC)")
	amt := flag.Float64("amt", 0, "amount in human units (e.g. 0.1)")
	slippageBps := flag.Int64("slippage-bps", 100, "slippage in bps (e.g. 100 = 1%)")
	versioned := flag.Bool("versioned", false, "build a v0 transaction instead of legacy")
	walletNS := flag.String("wallet", "", "ledger namespace (empty = guest)")
	flag.Parse()

	if *amt <= 0 {
		fmt.Println("missing -amt (must be > 0)")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(1)
	}
	if cfg.FeePayerKey == "" {
		fmt.Println("FEE_PAYER_PRIVATE_KEY is required")
		os.Exit(1)
	}

	w, err := wallet.New(wallet.Config{
		RPCURL:       cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		FeePayerKey:  cfg.FeePayerKey,
	})
	if err != nil {
		fmt.Println("failed to init wallet:", err)
		os.Exit(1)
	}
	defer w.Close()

	// The ledger is best-effort from the CLI: without Redis the swap
	// still runs, it just isn't recorded.
	var led *ledger.Ledger
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rclient.Ping(pingCtx).Err(); err == nil {
		led, _ = ledger.New(rclient, logger)
	}
	pingCancel()

	sess, err := session.New(session.Options{
		Registry: registry.New(registry.Config{CatalogURL: cfg.CatalogURL, Timeout: cfg.HTTPTimeout, Logger: logger}),
		Adapter:  amm.NewLiveAdapter(w.RPC()),
		Node:     w,
		FeePayer: w.PrivateKey(),
		Ledger:   led,
		Logger:   logger,
	})
	if err != nil {
		fmt.Println("failed to init session:", err)
		os.Exit(1)
	}

	switch *mode {
	case "quote":
		view, _, err := sess.Quote(ctx, session.QuoteParams{
			FromSymbol:  *inTok,
			ToSymbol:    *outTok,
			Amount:      *amt,
			SlippageBps: *slippageBps,
		})
		if err != nil {
			fmt.Println("quote failed:", err)
			os.Exit(1)
		}
		if view == nil {
			fmt.Println("no quote available")
			os.Exit(1)
		}
		fmt.Printf("%s -> %s amount_in=%.6f amount_out=%.6f min_out=%.6f price_impact=%.4f fee_bps=%.0f slippage_bps=%d\n",
			view.FromSymbol, view.ToSymbol, view.AmountIn, view.AmountOut, view.MinAmountOut,
			view.PriceImpact, view.FeeBps, view.SlippageBps)

	case "simulate", "execute":
		res, err := sess.ExecuteSwap(ctx, session.SwapParams{
			Wallet:      *walletNS,
			FromSymbol:  *inTok,
			ToSymbol:    *outTok,
			Amount:      *amt,
			SlippageBps: *slippageBps,
			Versioned:   *versioned,
			Submit:      *mode == "execute",
		})
		if err != nil {
			fmt.Println("swap failed:", err)
			os.Exit(1)
		}

		fmt.Printf("state=%s", res.State)
		if res.Signature != "" {
			fmt.Printf(" sig=%s", res.Signature)
		}
		if res.SimError != "" {
			fmt.Printf(" sim_error=%q", res.SimError)
		}
		if res.SendError != "" {
			fmt.Printf(" send_error=%q", res.SendError)
		}
		fmt.Println()
		if res.SimError != "" || res.SendError != "" {
			os.Exit(1)
		}

	default:
		fmt.Println("invalid -mode (use quote|simulate|execute)")
		os.Exit(2)
	}
}
