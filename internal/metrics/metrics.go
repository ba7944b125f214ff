package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stake_reward_claimer_runs_total",
			Help: "Total number of claim runs",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stake_reward_claimer_run_duration_seconds",
			Help:    "Duration of claim runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17 minutes
		},
	)

	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stake_reward_claimer_chunks_total",
			Help: "Total number of chunks processed, by outcome",
		},
		[]string{"status"},
	)

	EntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stake_reward_claimer_entries_total",
			Help: "Total number of stake entries processed, by result",
		},
		[]string{"result"},
	)

	InstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stake_reward_claimer_instructions_total",
			Help: "Total number of instructions composed, by kind",
		},
		[]string{"kind"},
	)

	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stake_reward_claimer_rpc_requests_total",
			Help: "Total number of Solana RPC requests",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stake_reward_claimer_rpc_request_duration_seconds",
			Help:    "Duration of Solana RPC requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
		[]string{"method"},
	)

	OperatorBalanceLamports = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stake_reward_claimer_operator_balance_lamports",
			Help: "Last observed operator balance in lamports",
		},
	)
)
