// Package report persists claim run reports in Redis.
//
// Keys, per pool:
//
//	claim:last_run:<pool>  JSON of the latest report (string)
//	claim:failed:<pool>    one JSON record per failed stake entry (list, newest first)
//	claim:runs:<pool>      one-line summaries of recent runs (list, newest first)
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/claimer"
)

const (
	LastRunKeyFmt = "claim:last_run:%s"
	FailedKeyFmt  = "claim:failed:%s"
	RunsKeyFmt    = "claim:runs:%s"

	// runsKept bounds the run summary list.
	runsKept = 100
	// failedKept bounds the failed list. A stuck entry is re-recorded on
	// every watch tick, so older records roll off.
	failedKept = 1000
)

var ErrNoRun = errors.New("no run recorded for pool")

// FailedRecord is one entry of the failed list.
type FailedRecord struct {
	RunID string           `json:"run_id"`
	Entry solana.PublicKey `json:"entry"`
	Chunk int              `json:"chunk"`
	Stage claimer.Stage    `json:"stage"`
	Error string           `json:"error"`
	At    time.Time        `json:"at"`
}

// RunSummary is one entry of the run list.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Considered int       `json:"considered"`
	Claimed    int       `json:"claimed"`
	Failed     int       `json:"failed"`
	DryRun     bool      `json:"dry_run"`
	FinishedAt time.Time `json:"finished_at"`
}

type Store struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewStore(rdb *redis.Client, log *zap.Logger) *Store {
	return &Store{rdb: rdb, log: log}
}

// SaveRun records r as the pool's latest run and pushes its failed entries
// onto the head of the failed list. All writes go in one MULTI/EXEC.
func (s *Store) SaveRun(ctx context.Context, r *claimer.Report) error {
	pool := r.Pool.String()
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	summary, err := json.Marshal(RunSummary{
		RunID:      r.RunID,
		Considered: r.EntriesConsidered,
		Claimed:    len(r.Claimed),
		Failed:     len(r.Failed),
		DryRun:     r.DryRun,
		FinishedAt: r.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	failed := make([]any, 0, len(r.Failed))
	for _, fe := range r.Failed {
		rec, err := json.Marshal(FailedRecord{
			RunID: r.RunID,
			Entry: fe.Entry,
			Chunk: fe.Chunk,
			Stage: fe.Stage,
			Error: fe.Error,
			At:    r.FinishedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal failed entry: %w", err)
		}
		failed = append(failed, string(rec))
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(LastRunKeyFmt, pool), string(raw), 0)
		if len(failed) > 0 {
			pipe.LPush(ctx, fmt.Sprintf(FailedKeyFmt, pool), failed...)
			pipe.LTrim(ctx, fmt.Sprintf(FailedKeyFmt, pool), 0, failedKept-1)
		}
		pipe.LPush(ctx, fmt.Sprintf(RunsKeyFmt, pool), string(summary))
		pipe.LTrim(ctx, fmt.Sprintf(RunsKeyFmt, pool), 0, runsKept-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	s.log.Debug("run report saved",
		zap.String("pool", pool),
		zap.String("run_id", r.RunID),
		zap.Int("failed", len(failed)))
	return nil
}

// LastRun returns the latest report of pool, or ErrNoRun.
func (s *Store) LastRun(ctx context.Context, pool solana.PublicKey) (*claimer.Report, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(LastRunKeyFmt, pool)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("get last run: %w", err)
	}
	var r claimer.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode last run: %w", err)
	}
	return &r, nil
}

// FailedEntries returns up to limit of the newest failed records of pool,
// newest first. limit <= 0 returns every kept record.
func (s *Store) FailedEntries(ctx context.Context, pool solana.PublicKey, limit int64) ([]FailedRecord, error) {
	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}
	raws, err := s.rdb.LRange(ctx, fmt.Sprintf(FailedKeyFmt, pool), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed entries: %w", err)
	}
	out := make([]FailedRecord, 0, len(raws))
	for _, raw := range raws {
		var rec FailedRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.log.Warn("skipping malformed failed record", zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Runs returns the summaries of the most recent runs of pool, newest first.
func (s *Store) Runs(ctx context.Context, pool solana.PublicKey) ([]RunSummary, error) {
	raws, err := s.rdb.LRange(ctx, fmt.Sprintf(RunsKeyFmt, pool), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]RunSummary, 0, len(raws))
	for _, raw := range raws {
		var rs RunSummary
		if err := json.Unmarshal([]byte(raw), &rs); err != nil {
			continue
		}
		out = append(out, rs)
	}
	return out, nil
}
