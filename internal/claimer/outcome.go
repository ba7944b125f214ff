package claimer

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/0gfoundation/stake-reward-claimer/internal/program"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Stage is where a failed chunk stopped.
type Stage string

const (
	StageCompose Stage = "compose"
	StageSubmit  Stage = "submit"
)

// Outcome is the result of one chunk.
type Outcome struct {
	Index        int                             `json:"index"`
	Total        int                             `json:"total"`
	Entries      []solana.PublicKey              `json:"entries"`
	Status       Status                          `json:"status"`
	Stage        Stage                           `json:"stage,omitempty"`
	Signature    *solana.Signature               `json:"signature,omitempty"`
	Explorer     string                          `json:"explorer,omitempty"`
	Instructions map[program.InstructionKind]int `json:"instructions,omitempty"`
	Error        string                          `json:"error,omitempty"`

	Err error `json:"-"`
}

func failed(index, total int, entries []solana.PublicKey, stage Stage, err error) Outcome {
	return Outcome{
		Index:   index,
		Total:   total,
		Entries: entries,
		Status:  StatusFailed,
		Stage:   stage,
		Error:   err.Error(),
		Err:     err,
	}
}

// FailedEntry is a stake entry whose chunk failed.
type FailedEntry struct {
	Entry solana.PublicKey `json:"entry"`
	Chunk int              `json:"chunk"`
	Stage Stage            `json:"stage"`
	Error string           `json:"error"`
}

// Report summarizes one run over a pool. OperatorBalanceLamports is zero when
// the balance could not be read.
type Report struct {
	RunID                   string             `json:"run_id"`
	Pool                    solana.PublicKey   `json:"pool"`
	Cluster                 string             `json:"cluster"`
	DryRun                  bool               `json:"dry_run"`
	EntriesConsidered       int                `json:"entries_considered"`
	Chunks                  int                `json:"chunks"`
	EstimatedFeeLamports    uint64             `json:"estimated_fee_lamports"`
	OperatorBalanceLamports uint64             `json:"operator_balance_lamports"`
	Outcomes                []Outcome          `json:"outcomes"`
	Claimed                 []solana.PublicKey `json:"claimed"`
	Failed                  []FailedEntry      `json:"failed"`
	StartedAt               time.Time          `json:"started_at"`
	FinishedAt              time.Time          `json:"finished_at"`
}

// OK reports whether no chunk failed.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

func (r *Report) Elapsed() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Summary is the closing line of a run.
func (r *Report) Summary() string {
	if r.DryRun {
		return fmt.Sprintf("Dry run: composed %d chunks for %d staked tokens, nothing submitted",
			r.Chunks, r.EntriesConsidered)
	}
	return fmt.Sprintf("Claimed rewards for %d of %d staked tokens (%d failed)",
		len(r.Claimed), r.EntriesConsidered, len(r.Failed))
}

// aggregate fills the claimed and failed lists from the outcomes.
func (r *Report) aggregate() {
	r.Claimed = nil
	r.Failed = nil
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSubmitted:
			r.Claimed = append(r.Claimed, o.Entries...)
		case StatusFailed:
			for _, e := range o.Entries {
				r.Failed = append(r.Failed, FailedEntry{Entry: e, Chunk: o.Index, Stage: o.Stage, Error: o.Error})
			}
		}
	}
}
