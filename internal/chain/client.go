package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0gfoundation/stake-reward-claimer/internal/config"
	"github.com/0gfoundation/stake-reward-claimer/internal/metrics"
	"github.com/0gfoundation/stake-reward-claimer/internal/retry"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrConfirmTimeout    = errors.New("transaction not confirmed before timeout")
)

// RPC is the subset of the solana-go RPC client used by Client.
type RPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// Account is a fetched ledger account.
type Account struct {
	Address  solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Commitment rpc.CommitmentType
	// RequestsPerSecond caps RPC calls across all goroutines; 0 disables the cap.
	RequestsPerSecond float64
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration
	Retry             retry.Config
	Clock             clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.Commitment == "" {
		o.Commitment = rpc.CommitmentConfirmed
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = retry.DefaultConfig()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Retry.Clock == nil {
		o.Retry.Clock = o.Clock
	}
	return o
}

// Client wraps the Solana RPC with rate limiting, read retries and an
// operator key that pays for and signs every submitted transaction.
type Client struct {
	rpc      RPC
	operator solana.PrivateKey
	opts     Options
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewClient dials the configured cluster endpoint.
func NewClient(cfg *config.Config, operator solana.PrivateKey, log *zap.Logger) (*Client, error) {
	endpoint := cfg.Solana.RPCURL
	if endpoint == "" {
		var err error
		if endpoint, err = EndpointFor(cfg.Solana.Cluster); err != nil {
			return nil, err
		}
	}
	log.Info("solana rpc", zap.String("endpoint", endpoint), zap.String("cluster", cfg.Solana.Cluster))

	return New(rpc.New(endpoint), operator, Options{
		RequestsPerSecond: cfg.Solana.RequestsPerSecond,
		ConfirmTimeout:    cfg.Solana.ConfirmTimeout(),
	}, log), nil
}

// New builds a Client over an existing RPC implementation.
func New(r RPC, operator solana.PrivateKey, opts Options, log *zap.Logger) *Client {
	opts = opts.withDefaults()
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond)))
	}
	return &Client{
		rpc:      r,
		operator: operator,
		opts:     opts,
		limiter:  limiter,
		log:      log,
	}
}

// Operator returns the fee payer public key.
func (c *Client) Operator() solana.PublicKey { return c.operator.PublicKey() }

// FetchAccount returns the account at addr, or ErrAccountNotFound.
func (c *Client) FetchAccount(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	var out *rpc.GetAccountInfoResult
	err := c.read(ctx, "getAccountInfo", func() (err error) {
		out, err = c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.opts.Commitment,
		})
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (out == nil || out.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", addr, err)
	}
	return toAccount(addr, out.Value), nil
}

// AccountExists reports whether addr holds an account.
func (c *Client) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	_, err := c.FetchAccount(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ProgramAccounts lists the accounts owned by program that match filters.
func (c *Client) ProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]Account, error) {
	var out rpc.GetProgramAccountsResult
	err := c.read(ctx, "getProgramAccounts", func() (err error) {
		out, err = c.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.opts.Commitment,
			Filters:    filters,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts %s: %w", program, err)
	}
	accounts := make([]Account, 0, len(out))
	for _, ka := range out {
		if ka == nil || ka.Account == nil {
			continue
		}
		accounts = append(accounts, *toAccount(ka.Pubkey, ka.Account))
	}
	return accounts, nil
}

// Balance returns the lamport balance of addr.
func (c *Client) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.read(ctx, "getBalance", func() (err error) {
		out, err = c.rpc.GetBalance(ctx, addr, c.opts.Commitment)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("getBalance %s: %w", addr, err)
	}
	return out.Value, nil
}

// Submit signs ixs with the operator key as fee payer, sends the transaction
// once and waits for confirmation. The send itself is never retried.
func (c *Client) Submit(ctx context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	var bh *rpc.GetLatestBlockhashResult
	err := c.read(ctx, "getLatestBlockhash", func() (err error) {
		bh, err = c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
		return err
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	payer := c.Operator()
	tx, err := solana.NewTransaction(ixs, bh.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &c.operator
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	var sig solana.Signature
	err = c.observe(ctx, "sendTransaction", func() (err error) {
		sig, err = c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: c.opts.Commitment,
		})
		return err
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	if err := c.confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// confirm polls the signature status until it reaches confirmed or
// finalized, reports an error, or the confirm timeout elapses.
func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	deadline := c.opts.Clock.After(c.opts.ConfirmTimeout)
	for {
		done, err := c.signatureDone(ctx, sig)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, sig, c.opts.ConfirmTimeout)
		case <-c.opts.Clock.After(c.opts.PollInterval):
		}
	}
}

func (c *Client) signatureDone(ctx context.Context, sig solana.Signature) (bool, error) {
	var out *rpc.GetSignatureStatusesResult
	err := c.read(ctx, "getSignatureStatuses", func() (err error) {
		out, err = c.rpc.GetSignatureStatuses(ctx, false, sig)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("get signature status %s: %w", sig, err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}
	st := out.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, st.Err)
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	}
	return false, nil
}

// read runs an idempotent RPC call with retries.
func (c *Client) read(ctx context.Context, method string, fn func() error) error {
	return retry.Do(ctx, c.opts.Retry, func() error {
		return c.observe(ctx, method, fn)
	})
}

// observe rate-limits fn and records its metrics.
func (c *Client) observe(ctx context.Context, method string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		status = "error"
		c.log.Debug("rpc error", zap.String("method", method), zap.Error(err))
	}
	metrics.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	return err
}

func toAccount(addr solana.PublicKey, acc *rpc.Account) *Account {
	out := &Account{Address: addr, Lamports: acc.Lamports}
	if acc.Data != nil {
		out.Data = acc.Data.GetBinary()
	}
	return out
}
