package claimer

import (
	"github.com/gagliardetto/solana-go"

	"github.com/0gfoundation/stake-reward-claimer/internal/program"
)

// Batch is the ordered instruction list of one chunk, submitted as a single
// atomic transaction.
type Batch struct {
	Instructions []solana.Instruction
	Entries      []*program.StakeEntry

	// token accounts already created by an earlier instruction of this batch
	createdTokenAccounts map[solana.PublicKey]bool
}

func (b *Batch) Empty() bool { return len(b.Instructions) == 0 }

func (b *Batch) add(ixs ...solana.Instruction) {
	b.Instructions = append(b.Instructions, ixs...)
}

// EntryAddresses returns the addresses of the stake entries the batch covers.
func (b *Batch) EntryAddresses() []solana.PublicKey {
	return entryAddresses(b.Entries)
}

func entryAddresses(entries []*program.StakeEntry) []solana.PublicKey {
	out := make([]solana.PublicKey, len(entries))
	for i, e := range entries {
		out[i] = e.Address
	}
	return out
}
