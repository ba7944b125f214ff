package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// FindRewardDistributorID derives the reward distributor address of a stake pool.
func FindRewardDistributorID(stakePool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(RewardDistributorSeed), stakePool.Bytes()},
		RewardDistributorProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive reward distributor for %s: %w", stakePool, err)
	}
	return addr, nil
}

// FindRewardEntryID derives the reward entry address of a (distributor, stake entry) pair.
func FindRewardEntryID(rewardDistributor, stakeEntry solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(RewardEntrySeed), rewardDistributor.Bytes(), stakeEntry.Bytes()},
		RewardDistributorProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive reward entry for %s: %w", stakeEntry, err)
	}
	return addr, nil
}

// FindRewardTokenAccount returns the associated token account of owner for the reward mint.
func FindRewardTokenAccount(owner, rewardMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, rewardMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account of %s: %w", owner, err)
	}
	return addr, nil
}
