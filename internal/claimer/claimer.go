// Package claimer claims stake-pool rewards in batches.
//
// A run resolves the pool's reward distributor, lists its active stake
// entries, splits them into chunks and sends one transaction per chunk on a
// bounded worker pool. Chunks succeed or fail independently.
//
// Runs are not resumable. Re-running over the same pool is the recovery path
// for failed chunks: reward entries are only initialized when missing, and
// stake seconds and claimable rewards are computed by the on-chain programs.
package claimer

import (
	"context"
	"maps"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0gfoundation/stake-reward-claimer/internal/chain"
	"github.com/0gfoundation/stake-reward-claimer/internal/discovery"
	"github.com/0gfoundation/stake-reward-claimer/internal/metrics"
	"github.com/0gfoundation/stake-reward-claimer/internal/program"
)

const (
	DefaultBatchSize           = 4
	DefaultMaxConcurrency      = 8
	DefaultFeePerEntryLamports = 2_000_000 // 0.002 SOL
)

// Ledger is everything a run needs from chain.Client.
type Ledger interface {
	discovery.Ledger
	Operator() solana.PublicKey
	Balance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error)
	Submit(ctx context.Context, ixs []solana.Instruction) (solana.Signature, error)
}

// Sink persists run reports.
type Sink interface {
	SaveRun(ctx context.Context, r *Report) error
}

type Options struct {
	Cluster   string
	BatchSize int
	// MaxConcurrency bounds the chunks in flight; 0 runs every chunk at once.
	MaxConcurrency      int
	FeePerEntryLamports uint64
	// DryRun composes every chunk but submits nothing.
	DryRun bool
	Sink   Sink
	Clock  clockwork.Clock
}

type Claimer struct {
	ledger    Ledger
	discovery *discovery.Discovery
	submitter *Submitter
	opts      Options
	log       *zap.Logger
}

func New(ledger Ledger, opts Options, log *zap.Logger) *Claimer {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Claimer{
		ledger:    ledger,
		discovery: discovery.New(ledger, log),
		submitter: NewSubmitter(ledger, opts.Cluster, log),
		opts:      opts,
		log:       log,
	}
}

// Run claims rewards for every active stake entry of pool. The error is
// non-nil only for failures that stop the run before any chunk is
// dispatched; chunk failures are recorded in the report.
func (c *Claimer) Run(ctx context.Context, pool solana.PublicKey) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Pool:      pool,
		Cluster:   c.opts.Cluster,
		DryRun:    c.opts.DryRun,
		StartedAt: c.opts.Clock.Now(),
	}
	log := c.log.With(zap.String("run_id", report.RunID), zap.String("pool", pool.String()))

	err := c.run(ctx, log, report)
	report.FinishedAt = c.opts.Clock.Now()
	metrics.RunDuration.Observe(report.Elapsed().Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues("fatal").Inc()
		return nil, err
	}

	status := "ok"
	if !report.OK() {
		status = "partial"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()

	log.Info(report.Summary(),
		zap.Int("considered", report.EntriesConsidered),
		zap.Int("claimed", len(report.Claimed)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("elapsed", report.Elapsed()))

	if c.opts.Sink != nil {
		if err := c.opts.Sink.SaveRun(ctx, report); err != nil {
			log.Warn("save run report", zap.Error(err))
		}
	}
	return report, nil
}

func (c *Claimer) run(ctx context.Context, log *zap.Logger, report *Report) error {
	dist, err := c.discovery.ResolveDistributor(ctx, report.Pool)
	if err != nil {
		return err
	}
	entries, err := c.discovery.ListActiveEntries(ctx, report.Pool)
	if err != nil {
		return err
	}
	composer, err := NewComposer(c.ledger, dist)
	if err != nil {
		return err
	}

	report.EntriesConsidered = len(entries)
	report.EstimatedFeeLamports = uint64(len(entries)) * c.opts.FeePerEntryLamports
	log.Info("estimated fee",
		zap.Int("entries", len(entries)),
		zap.Float64("sol", chain.LamportsToSOL(report.EstimatedFeeLamports)),
		zap.Uint64("lamports", report.EstimatedFeeLamports))
	c.checkBalance(ctx, log, report)

	chunks := Chunk(entries, c.opts.BatchSize)
	report.Chunks = len(chunks)
	report.Outcomes = make([]Outcome, len(chunks))

	var g errgroup.Group
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			report.Outcomes[i] = c.processChunk(ctx, log, composer, chunk, i, len(chunks))
			return nil
		})
	}
	_ = g.Wait()

	report.aggregate()
	for _, o := range report.Outcomes {
		metrics.ChunksTotal.WithLabelValues(string(o.Status)).Inc()
	}
	metrics.EntriesTotal.WithLabelValues("claimed").Add(float64(len(report.Claimed)))
	metrics.EntriesTotal.WithLabelValues("failed").Add(float64(len(report.Failed)))
	return nil
}

// checkBalance records the operator balance and warns when it does not
// cover the estimate. It never stops the run.
func (c *Claimer) checkBalance(ctx context.Context, log *zap.Logger, report *Report) {
	bal, err := c.ledger.Balance(ctx, c.ledger.Operator())
	if err != nil {
		log.Warn("read operator balance", zap.Error(err))
		return
	}
	report.OperatorBalanceLamports = bal
	metrics.OperatorBalanceLamports.Set(float64(bal))
	if bal < report.EstimatedFeeLamports {
		log.Warn("operator balance below estimated fee",
			zap.Float64("balance_sol", chain.LamportsToSOL(bal)),
			zap.Float64("estimate_sol", chain.LamportsToSOL(report.EstimatedFeeLamports)))
	}
}

// processChunk composes and submits one chunk. It never returns an error:
// the outcome slot at index is the only state it writes.
func (c *Claimer) processChunk(ctx context.Context, log *zap.Logger, composer *Composer, chunk []*program.StakeEntry, index, total int) Outcome {
	batch, err := composer.ComposeChunk(ctx, chunk)
	if err != nil {
		log.Error("chunk failed", zap.Int("chunk", index+1), zap.Int("chunks", total), zap.String("stage", string(StageCompose)), zap.Error(err))
		return failed(index, total, entryAddresses(chunk), StageCompose, err)
	}

	counts := program.CountKinds(batch.Instructions)
	for kind, n := range counts {
		metrics.InstructionsTotal.WithLabelValues(string(kind)).Add(float64(n))
	}

	var outcome Outcome
	if c.opts.DryRun {
		fields := []zap.Field{zap.Int("chunk", index+1), zap.Int("chunks", total)}
		for _, kind := range slices.Sorted(maps.Keys(counts)) {
			fields = append(fields, zap.Int(string(kind), counts[kind]))
		}
		log.Info("dry run: composed chunk", fields...)
		outcome = Outcome{Index: index, Total: total, Entries: batch.EntryAddresses(), Status: StatusSkipped}
	} else {
		outcome = c.submitter.Submit(ctx, batch, index, total)
	}
	outcome.Instructions = counts
	return outcome
}
