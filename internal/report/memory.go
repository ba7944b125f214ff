package report

import (
	"context"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/0gfoundation/stake-reward-claimer/internal/claimer"
)

// Memory keeps reports in process. It backs the status server when Redis is
// not configured; nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	last   map[solana.PublicKey]*claimer.Report
	failed map[solana.PublicKey][]FailedRecord
	runs   map[solana.PublicKey][]RunSummary
}

func NewMemory() *Memory {
	return &Memory{
		last:   make(map[solana.PublicKey]*claimer.Report),
		failed: make(map[solana.PublicKey][]FailedRecord),
		runs:   make(map[solana.PublicKey][]RunSummary),
	}
}

func (m *Memory) SaveRun(_ context.Context, r *claimer.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[r.Pool] = r
	if len(r.Failed) > 0 {
		failed := make([]FailedRecord, 0, len(r.Failed)+len(m.failed[r.Pool]))
		for _, fe := range slices.Backward(r.Failed) {
			failed = append(failed, FailedRecord{
				RunID: r.RunID, Entry: fe.Entry, Chunk: fe.Chunk, Stage: fe.Stage, Error: fe.Error, At: r.FinishedAt,
			})
		}
		failed = append(failed, m.failed[r.Pool]...)
		m.failed[r.Pool] = failed[:min(len(failed), failedKept)]
	}
	runs := append([]RunSummary{{
		RunID:      r.RunID,
		Considered: r.EntriesConsidered,
		Claimed:    len(r.Claimed),
		Failed:     len(r.Failed),
		DryRun:     r.DryRun,
		FinishedAt: r.FinishedAt,
	}}, m.runs[r.Pool]...)
	m.runs[r.Pool] = runs[:min(len(runs), runsKept)]
	return nil
}

func (m *Memory) LastRun(_ context.Context, pool solana.PublicKey) (*claimer.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.last[pool]
	if !ok {
		return nil, ErrNoRun
	}
	return r, nil
}

func (m *Memory) FailedEntries(_ context.Context, pool solana.PublicKey, limit int64) ([]FailedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.failed[pool]
	if limit > 0 && int64(len(recs)) > limit {
		recs = recs[:limit]
	}
	return append([]FailedRecord(nil), recs...), nil
}

func (m *Memory) Runs(_ context.Context, pool solana.PublicKey) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RunSummary(nil), m.runs[pool]...), nil
}
