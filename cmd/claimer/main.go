package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/chain"
	"github.com/0gfoundation/stake-reward-claimer/internal/claimer"
	"github.com/0gfoundation/stake-reward-claimer/internal/config"
	"github.com/0gfoundation/stake-reward-claimer/internal/operator"
	"github.com/0gfoundation/stake-reward-claimer/internal/report"
	"github.com/0gfoundation/stake-reward-claimer/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runStore receives run reports and serves them back to the status server.
type runStore interface {
	claimer.Sink
	server.Store
}

func run() error {
	config.RegisterFlags(flag.CommandLine)
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) console logging")
	flag.Parse()

	log, err := newLogger(*verboseFlag)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(flag.CommandLine)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	pool, err := solana.PublicKeyFromBase58(cfg.Claim.StakePoolID)
	if err != nil {
		return fmt.Errorf("invalid STAKE_POOL_ID %q: %w", cfg.Claim.StakePoolID, err)
	}
	cluster, err := chain.NormalizeCluster(cfg.Solana.Cluster)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// ── Operator key (fee payer, signs every transaction) ─────────────────────
	key, err := operator.Load(cfg.Operator.SecretKey, cfg.Operator.KeypairPath)
	if err != nil {
		return err
	}
	log.Info("operator loaded", zap.String("pubkey", key.PublicKey().String()))

	// ── Chain client ──────────────────────────────────────────────────────────
	onchain, err := chain.NewClient(cfg, key, log)
	if err != nil {
		return fmt.Errorf("chain client init: %w", err)
	}

	// ── Report store (Redis when configured, in-memory for watch mode) ────────
	var store runStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		store = report.NewStore(rdb, log)
	} else if cfg.Claim.WatchInterval > 0 {
		store = report.NewMemory()
	}

	opts := claimer.Options{
		Cluster:             cluster,
		BatchSize:           cfg.Claim.BatchSize,
		MaxConcurrency:      cfg.Claim.MaxConcurrency,
		FeePerEntryLamports: cfg.Claim.FeePerEntryLamports,
		DryRun:              cfg.Claim.DryRun,
	}
	if store != nil {
		opts.Sink = store
	}
	c := claimer.New(onchain, opts, log)

	if cfg.Claim.WatchInterval <= 0 {
		r, err := c.Run(ctx, pool)
		if err != nil {
			return err
		}
		fmt.Println(r.Summary())
		return nil
	}
	return watch(ctx, cfg, c, store, pool, log)
}

// watch re-runs the claimer on an interval and serves run status until
// SIGINT/SIGTERM.
func watch(ctx context.Context, cfg *config.Config, c *claimer.Claimer, store runStore, pool solana.PublicKey, log *zap.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(ctx, pool, cfg.Claim.WatchInterval)
	}()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.NewRouter(server.NewHandler(store, pool, log)),
	}
	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	<-done
	log.Info("shutdown complete")
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
