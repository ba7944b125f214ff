package claimer

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/chain"
)

// Submitter sends one batch per chunk and turns any error into a failed
// outcome so sibling chunks are unaffected.
type Submitter struct {
	ledger  Ledger
	cluster string
	log     *zap.Logger
}

func NewSubmitter(ledger Ledger, cluster string, log *zap.Logger) *Submitter {
	return &Submitter{ledger: ledger, cluster: cluster, log: log}
}

// Submit sends batch as chunk index of total. An empty batch is skipped
// without touching the network.
func (s *Submitter) Submit(ctx context.Context, batch *Batch, index, total int) Outcome {
	entries := batch.EntryAddresses()
	if batch.Empty() {
		return Outcome{Index: index, Total: total, Entries: entries, Status: StatusSkipped}
	}

	log := s.log.With(zap.Int("chunk", index+1), zap.Int("chunks", total), zap.Int("entries", len(entries)))
	sig, err := s.ledger.Submit(ctx, batch.Instructions)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if sig != (solana.Signature{}) {
			fields = append(fields, zap.String("signature", sig.String()))
		}
		log.Error("chunk failed", fields...)
		return failed(index, total, entries, StageSubmit, err)
	}

	url := chain.ExplorerURL(sig, s.cluster)
	log.Info("claimed rewards for chunk", zap.String("signature", sig.String()), zap.String("explorer", url))
	return Outcome{
		Index:     index,
		Total:     total,
		Entries:   entries,
		Status:    StatusSubmitted,
		Signature: &sig,
		Explorer:  url,
	}
}
