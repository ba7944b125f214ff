package program

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// InstructionKind names the instructions the claimer emits.
type InstructionKind string

const (
	KindInitRewardEntry         InstructionKind = "init_reward_entry"
	KindUpdateTotalStakeSeconds InstructionKind = "update_total_stake_seconds"
	KindCreateTokenAccount      InstructionKind = "create_token_account"
	KindClaimRewards            InstructionKind = "claim_rewards"
	KindUnknown                 InstructionKind = "unknown"
)

// NewInitRewardEntryInstruction creates the reward entry of a stake entry, paid by payer.
func NewInitRewardEntryInstruction(rewardEntry, stakeEntry, rewardDistributor, payer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		RewardDistributorProgramID,
		solana.AccountMetaSlice{
			solana.Meta(rewardEntry).WRITE(),
			solana.Meta(stakeEntry),
			solana.Meta(rewardDistributor).WRITE(),
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		initRewardEntryDiscriminator[:],
	)
}

// NewUpdateTotalStakeSecondsInstruction accrues the time staked since the
// last update into the entry's counter. lastStaker must be the entry's
// current staker.
func NewUpdateTotalStakeSecondsInstruction(stakeEntry, lastStaker solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		StakePoolProgramID,
		solana.AccountMetaSlice{
			solana.Meta(stakeEntry).WRITE(),
			solana.Meta(lastStaker).WRITE(),
		},
		updateTotalStakeSecondsDiscriminator[:],
	)
}

// ClaimRewardsAccounts lists the accounts of a claim_rewards instruction.
type ClaimRewardsAccounts struct {
	RewardEntry                solana.PublicKey
	RewardDistributor          solana.PublicKey
	StakeEntry                 solana.PublicKey
	StakePool                  solana.PublicKey
	RewardMint                 solana.PublicKey
	UserRewardMintTokenAccount solana.PublicKey
	User                       solana.PublicKey
	Payer                      solana.PublicKey

	// DistributorTokenAccount is set for treasury distributors, which pay
	// out of their own token account instead of minting.
	DistributorTokenAccount *solana.PublicKey
}

// NewClaimRewardsInstruction pays the rewards accrued by a stake entry to its staker.
func NewClaimRewardsInstruction(a ClaimRewardsAccounts) solana.Instruction {
	metas := solana.AccountMetaSlice{
		solana.Meta(a.RewardEntry).WRITE(),
		solana.Meta(a.RewardDistributor).WRITE(),
		solana.Meta(a.StakeEntry),
		solana.Meta(a.StakePool),
		solana.Meta(a.RewardMint).WRITE(),
		solana.Meta(a.UserRewardMintTokenAccount).WRITE(),
		solana.Meta(RewardManager).WRITE(),
		solana.Meta(a.User).WRITE(),
		solana.Meta(a.Payer).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	}
	if a.DistributorTokenAccount != nil {
		metas = append(metas, solana.Meta(*a.DistributorTokenAccount).WRITE())
	}
	return solana.NewInstruction(RewardDistributorProgramID, metas, claimRewardsDiscriminator[:])
}

// createIdempotent is the associated token account program's CreateIdempotent
// instruction tag. It succeeds when the account already exists.
const createIdempotent byte = 1

// NewCreateTokenAccountInstruction creates owner's associated token account
// for mint at tokenAccount unless it already exists. Two batches may both
// carry it for the same staker.
func NewCreateTokenAccountInstruction(payer, tokenAccount, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(tokenAccount).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.TokenProgramID),
		},
		[]byte{createIdempotent},
	)
}

// KindOf classifies an instruction built by this package.
func KindOf(ix solana.Instruction) InstructionKind {
	if ix.ProgramID().Equals(solana.SPLAssociatedTokenAccountProgramID) {
		return KindCreateTokenAccount
	}
	data, err := ix.Data()
	if err != nil || len(data) < 8 {
		return KindUnknown
	}
	prefix := data[:8]
	switch {
	case ix.ProgramID().Equals(RewardDistributorProgramID) && bytes.Equal(prefix, initRewardEntryDiscriminator[:]):
		return KindInitRewardEntry
	case ix.ProgramID().Equals(StakePoolProgramID) && bytes.Equal(prefix, updateTotalStakeSecondsDiscriminator[:]):
		return KindUpdateTotalStakeSeconds
	case ix.ProgramID().Equals(RewardDistributorProgramID) && bytes.Equal(prefix, claimRewardsDiscriminator[:]):
		return KindClaimRewards
	}
	return KindUnknown
}

// CountKinds tallies the instructions of a batch by kind.
func CountKinds(ixs []solana.Instruction) map[InstructionKind]int {
	counts := make(map[InstructionKind]int)
	for _, ix := range ixs {
		counts[KindOf(ix)]++
	}
	return counts
}
