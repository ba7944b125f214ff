package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/claimer"
	"github.com/0gfoundation/stake-reward-claimer/internal/program/programtest"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(rdb, zap.NewNop()), rdb
}

func makeReport(pool solana.PublicKey, runID string, failed ...solana.PublicKey) *claimer.Report {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	claimed := programtest.NewKey()
	sig := solana.Signature{9}
	r := &claimer.Report{
		RunID:             runID,
		Pool:              pool,
		Cluster:           "devnet",
		EntriesConsidered: 1 + len(failed),
		Chunks:            2,
		Outcomes: []claimer.Outcome{
			{Index: 0, Total: 2, Entries: []solana.PublicKey{claimed}, Status: claimer.StatusSubmitted, Signature: &sig},
			{Index: 1, Total: 2, Entries: failed, Status: claimer.StatusFailed, Stage: claimer.StageSubmit, Error: "simulation failed"},
		},
		Claimed:    []solana.PublicKey{claimed},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
	for _, e := range failed {
		r.Failed = append(r.Failed, claimer.FailedEntry{Entry: e, Chunk: 1, Stage: claimer.StageSubmit, Error: "simulation failed"})
	}
	return r
}

// ── SaveRun / LastRun ─────────────────────────────────────────────────────────

func TestSaveRun_LastRunRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	pool := programtest.NewKey()
	in := makeReport(pool, "run-1", programtest.NewKey())

	if err := s.SaveRun(ctx, in); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	out, err := s.LastRun(ctx, pool)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if out.RunID != "run-1" {
		t.Errorf("run id: got %q want run-1", out.RunID)
	}
	if !out.Pool.Equals(pool) {
		t.Errorf("pool: got %s want %s", out.Pool, pool)
	}
	if len(out.Outcomes) != 2 || out.Outcomes[1].Status != claimer.StatusFailed {
		t.Fatalf("outcomes: got %+v", out.Outcomes)
	}
	if out.Outcomes[0].Signature == nil || *out.Outcomes[0].Signature != *in.Outcomes[0].Signature {
		t.Errorf("signature: got %v want %v", out.Outcomes[0].Signature, in.Outcomes[0].Signature)
	}
	if !out.FinishedAt.Equal(in.FinishedAt) {
		t.Errorf("finished at: got %s want %s", out.FinishedAt, in.FinishedAt)
	}
}

func TestSaveRun_OverwritesLastRun(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	pool := programtest.NewKey()

	for i := 1; i <= 3; i++ {
		if err := s.SaveRun(ctx, makeReport(pool, fmt.Sprintf("run-%d", i))); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	out, err := s.LastRun(ctx, pool)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if out.RunID != "run-3" {
		t.Errorf("run id: got %q want run-3", out.RunID)
	}

	runs, err := s.Runs(ctx, pool)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 3 || runs[0].RunID != "run-3" {
		t.Errorf("runs: got %+v", runs)
	}
}

func TestLastRun_NoRun(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.LastRun(context.Background(), programtest.NewKey())
	if !errors.Is(err, ErrNoRun) {
		t.Fatalf("expected ErrNoRun, got %v", err)
	}
}

// ── Failed list ───────────────────────────────────────────────────────────────

func TestSaveRun_AppendsFailedEntries(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()
	pool := programtest.NewKey()
	a, b, c := programtest.NewKey(), programtest.NewKey(), programtest.NewKey()

	if err := s.SaveRun(ctx, makeReport(pool, "run-1", a, b)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, makeReport(pool, "run-2", c)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	n, err := rdb.LLen(ctx, fmt.Sprintf(FailedKeyFmt, pool)).Result()
	if err != nil {
		t.Fatalf("LLEN: %v", err)
	}
	if n != 3 {
		t.Fatalf("failed list length: got %d want 3", n)
	}

	recs, err := s.FailedEntries(ctx, pool, 0)
	if err != nil {
		t.Fatalf("FailedEntries: %v", err)
	}
	want := []struct {
		run   string
		entry solana.PublicKey
	}{{"run-2", c}, {"run-1", b}, {"run-1", a}}
	for i, w := range want {
		if recs[i].RunID != w.run || !recs[i].Entry.Equals(w.entry) {
			t.Errorf("record %d: got %s/%s want %s/%s", i, recs[i].RunID, recs[i].Entry, w.run, w.entry)
		}
		if recs[i].Stage != claimer.StageSubmit {
			t.Errorf("record %d stage: got %s want submit", i, recs[i].Stage)
		}
	}

	limited, err := s.FailedEntries(ctx, pool, 2)
	if err != nil {
		t.Fatalf("FailedEntries: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited: got %d want 2", len(limited))
	}
}

func TestSaveRun_FailedListIsBoundedNewestFirst(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()
	pool := programtest.NewKey()
	stuck, fresh := programtest.NewKey(), programtest.NewKey()

	for i := 0; i < failedKept+50; i++ {
		if err := s.SaveRun(ctx, makeReport(pool, fmt.Sprintf("run-%d", i), stuck)); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
	}
	if err := s.SaveRun(ctx, makeReport(pool, "run-last", fresh)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	n, err := rdb.LLen(ctx, fmt.Sprintf(FailedKeyFmt, pool)).Result()
	if err != nil {
		t.Fatalf("LLEN: %v", err)
	}
	if n != failedKept {
		t.Errorf("failed list length: got %d want %d", n, failedKept)
	}

	recs, err := s.FailedEntries(ctx, pool, 100)
	if err != nil {
		t.Fatalf("FailedEntries: %v", err)
	}
	if len(recs) != 100 {
		t.Fatalf("page: got %d want 100", len(recs))
	}
	if recs[0].RunID != "run-last" || !recs[0].Entry.Equals(fresh) {
		t.Errorf("head: got %s/%s want run-last/%s", recs[0].RunID, recs[0].Entry, fresh)
	}
	if want := fmt.Sprintf("run-%d", failedKept+49); recs[1].RunID != want {
		t.Errorf("second: got %s want %s", recs[1].RunID, want)
	}
}

func TestSaveRun_NoFailuresLeavesListEmpty(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()
	pool := programtest.NewKey()

	if err := s.SaveRun(ctx, makeReport(pool, "run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	n, _ := rdb.Exists(ctx, fmt.Sprintf(FailedKeyFmt, pool)).Result()
	if n != 0 {
		t.Error("failed list should not exist")
	}
}

func TestSaveRun_PoolsAreIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p1, p2 := programtest.NewKey(), programtest.NewKey()

	if err := s.SaveRun(ctx, makeReport(p1, "run-p1", programtest.NewKey())); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := s.LastRun(ctx, p2); !errors.Is(err, ErrNoRun) {
		t.Errorf("pool 2 last run: expected ErrNoRun, got %v", err)
	}
	recs, _ := s.FailedEntries(ctx, p2, 0)
	if len(recs) != 0 {
		t.Errorf("pool 2 failed entries: got %d want 0", len(recs))
	}
}
