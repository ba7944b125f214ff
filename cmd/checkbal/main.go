package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/chain"
	"github.com/0gfoundation/stake-reward-claimer/internal/config"
	"github.com/0gfoundation/stake-reward-claimer/internal/discovery"
	"github.com/0gfoundation/stake-reward-claimer/internal/operator"
)

// checkbal prints the operator balance against the estimated cost of a
// claim run over the pool.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(flag.CommandLine)
	if err != nil {
		return err
	}
	pool, err := solana.PublicKeyFromBase58(cfg.Claim.StakePoolID)
	if err != nil {
		return fmt.Errorf("invalid STAKE_POOL_ID: %w", err)
	}
	key, err := operator.Load(cfg.Operator.SecretKey, cfg.Operator.KeypairPath)
	if err != nil {
		return err
	}

	log := zap.NewNop()
	onchain, err := chain.NewClient(cfg, key, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	balance, err := onchain.Balance(ctx, onchain.Operator())
	if err != nil {
		return err
	}
	entries, err := discovery.New(onchain, log).ListActiveEntries(ctx, pool)
	if err != nil {
		return err
	}
	estimate := uint64(len(entries)) * cfg.Claim.FeePerEntryLamports

	fmt.Printf("operator:  %s\n", onchain.Operator())
	fmt.Printf("balance:   %.6f SOL\n", chain.LamportsToSOL(balance))
	fmt.Printf("entries:   %d\n", len(entries))
	fmt.Printf("estimate:  %.6f SOL\n", chain.LamportsToSOL(estimate))
	if balance < estimate {
		return fmt.Errorf("balance short by %.6f SOL", chain.LamportsToSOL(estimate-balance))
	}
	fmt.Println("sufficient")
	return nil
}
