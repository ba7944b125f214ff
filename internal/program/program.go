// Package program holds the addresses, account layouts and instruction
// builders of the on-chain stake pool and reward distributor programs.
package program

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

var (
	StakePoolProgramID         = solana.MustPublicKeyFromBase58("stkBL96RZkjY5ine4TvPihGqW8UHJfch2cokjAPzV8i")
	RewardDistributorProgramID = solana.MustPublicKeyFromBase58("rwdNPNPS6zStq6BNdJRhr1mLZVxM7GgGnrmNvyDQmA4")

	// RewardManager is the fee collector the reward distributor program
	// requires on every claim.
	RewardManager = solana.MustPublicKeyFromBase58("crkdpVWjHWdggGgBuSyAqSmZUmAjYLzD435tcLDRLXr")
)

// PDA seeds
const (
	RewardDistributorSeed = "reward-distributor"
	RewardEntrySeed       = "reward-entry"
)

// Discriminator is the 8-byte anchor prefix of account data and instruction data.
type Discriminator [8]byte

func sighash(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

var (
	StakeEntryDiscriminator        = sighash("account", "StakeEntry")
	RewardDistributorDiscriminator = sighash("account", "RewardDistributor")
	RewardEntryDiscriminator       = sighash("account", "RewardEntry")

	initRewardEntryDiscriminator         = sighash("global", "init_reward_entry")
	updateTotalStakeSecondsDiscriminator = sighash("global", "update_total_stake_seconds")
	claimRewardsDiscriminator            = sighash("global", "claim_rewards")
)
