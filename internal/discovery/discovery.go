// Package discovery finds a pool's reward distributor and its active stake
// entries. It only reads from the ledger.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/chain"
	"github.com/0gfoundation/stake-reward-claimer/internal/program"
)

var ErrDistributorNotFound = errors.New("reward distributor not found")

// Ledger is the read side of chain.Client.
type Ledger interface {
	FetchAccount(ctx context.Context, addr solana.PublicKey) (*chain.Account, error)
	ProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]chain.Account, error)
}

type Discovery struct {
	ledger Ledger
	log    *zap.Logger
}

func New(ledger Ledger, log *zap.Logger) *Discovery {
	return &Discovery{ledger: ledger, log: log}
}

// ResolveDistributor fetches the reward distributor of pool. A pool without
// one has nothing to claim, so the caller should abort.
func (d *Discovery) ResolveDistributor(ctx context.Context, pool solana.PublicKey) (*program.RewardDistributor, error) {
	addr, err := program.FindRewardDistributorID(pool)
	if err != nil {
		return nil, fmt.Errorf("derive reward distributor: %w", err)
	}

	acc, err := d.ledger.FetchAccount(ctx, addr)
	if errors.Is(err, chain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w for pool %s (expected at %s)", ErrDistributorNotFound, pool, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch reward distributor: %w", err)
	}

	dist, err := program.DecodeRewardDistributor(addr, acc.Data)
	if err != nil {
		return nil, err
	}
	d.log.Info("resolved reward distributor",
		zap.String("pool", pool.String()),
		zap.String("distributor", addr.String()),
		zap.String("kind", dist.Kind.String()),
		zap.String("reward_mint", dist.RewardMint.String()))
	return dist, nil
}

// ListActiveEntries returns the pool's stake entries that currently have a
// staker, sorted by address.
func (d *Discovery) ListActiveEntries(ctx context.Context, pool solana.PublicKey) ([]*program.StakeEntry, error) {
	accounts, err := d.ledger.ProgramAccounts(ctx, program.StakePoolProgramID, program.StakeEntryFilters(pool))
	if err != nil {
		return nil, fmt.Errorf("list stake entries: %w", err)
	}

	entries := make([]*program.StakeEntry, 0, len(accounts))
	inactive := 0
	for _, acc := range accounts {
		entry, err := program.DecodeStakeEntry(acc.Address, acc.Data)
		if err != nil {
			d.log.Warn("skipping undecodable stake entry",
				zap.String("entry", acc.Address.String()), zap.Error(err))
			continue
		}
		if !entry.Active() {
			inactive++
			continue
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b *program.StakeEntry) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})

	d.log.Info("listed stake entries",
		zap.String("pool", pool.String()),
		zap.Int("active", len(entries)),
		zap.Int("inactive", inactive))
	return entries, nil
}
