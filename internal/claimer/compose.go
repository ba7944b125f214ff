package claimer

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/0gfoundation/stake-reward-claimer/internal/program"
)

// Composer builds the instructions that claim rewards for stake entries of
// one reward distributor. It keeps no state between compositions: account
// existence is looked up every time.
type Composer struct {
	ledger                  Ledger
	distributor             *program.RewardDistributor
	distributorTokenAccount *solana.PublicKey
}

func NewComposer(ledger Ledger, distributor *program.RewardDistributor) (*Composer, error) {
	c := &Composer{ledger: ledger, distributor: distributor}
	if distributor.Kind == program.DistributorKindTreasury {
		addr, err := program.FindRewardTokenAccount(distributor.Address, distributor.RewardMint)
		if err != nil {
			return nil, fmt.Errorf("derive distributor token account: %w", err)
		}
		c.distributorTokenAccount = &addr
	}
	return c, nil
}

// ComposeChunk returns the batch for entries. Any lookup error aborts the
// whole chunk.
func (c *Composer) ComposeChunk(ctx context.Context, entries []*program.StakeEntry) (*Batch, error) {
	batch := &Batch{Entries: entries}
	for _, entry := range entries {
		if err := c.ComposeEntry(ctx, batch, entry); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// ComposeEntry appends, in order: init-reward-entry when the reward entry
// does not exist, update-total-stake-seconds, create-token-account when the
// staker has no reward token account, and claim-rewards.
func (c *Composer) ComposeEntry(ctx context.Context, batch *Batch, entry *program.StakeEntry) error {
	operator := c.ledger.Operator()
	dist := c.distributor

	rewardEntry, err := program.FindRewardEntryID(dist.Address, entry.Address)
	if err != nil {
		return err
	}
	exists, err := c.ledger.AccountExists(ctx, rewardEntry)
	if err != nil {
		return fmt.Errorf("look up reward entry of %s: %w", entry.Address, err)
	}
	if !exists {
		batch.add(program.NewInitRewardEntryInstruction(rewardEntry, entry.Address, dist.Address, operator))
	}

	batch.add(program.NewUpdateTotalStakeSecondsInstruction(entry.Address, entry.LastStaker))

	userTokenAccount, err := program.FindRewardTokenAccount(entry.LastStaker, dist.RewardMint)
	if err != nil {
		return err
	}
	if !batch.createdTokenAccounts[userTokenAccount] {
		exists, err = c.ledger.AccountExists(ctx, userTokenAccount)
		if err != nil {
			return fmt.Errorf("look up reward token account of %s: %w", entry.LastStaker, err)
		}
		if !exists {
			batch.add(program.NewCreateTokenAccountInstruction(operator, userTokenAccount, entry.LastStaker, dist.RewardMint))
			if batch.createdTokenAccounts == nil {
				batch.createdTokenAccounts = make(map[solana.PublicKey]bool)
			}
			batch.createdTokenAccounts[userTokenAccount] = true
		}
	}

	batch.add(program.NewClaimRewardsInstruction(program.ClaimRewardsAccounts{
		RewardEntry:                rewardEntry,
		RewardDistributor:          dist.Address,
		StakeEntry:                 entry.Address,
		StakePool:                  dist.StakePool,
		RewardMint:                 dist.RewardMint,
		UserRewardMintTokenAccount: userTokenAccount,
		User:                       entry.LastStaker,
		Payer:                      operator,
		DistributorTokenAccount:    c.distributorTokenAccount,
	}))
	return nil
}
