package chain

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/program"
	"github.com/0gfoundation/stake-reward-claimer/internal/program/programtest"
	"github.com/0gfoundation/stake-reward-claimer/internal/retry"
)

type mockRPC struct {
	getAccountInfoFunc       func(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	getProgramAccountsFunc   func(context.Context, solana.PublicKey, *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	sendTransactionFunc      func(context.Context, *solana.Transaction) (solana.Signature, error)
	getSignatureStatusesFunc func(context.Context, solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	getBalanceFunc           func(context.Context, solana.PublicKey) (*rpc.GetBalanceResult, error)

	sendCalls   atomic.Int32
	statusCalls atomic.Int32
}

func (m *mockRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if m.getAccountInfoFunc == nil {
		return nil, rpc.ErrNotFound
	}
	return m.getAccountInfoFunc(ctx, account)
}

func (m *mockRPC) GetProgramAccountsWithOpts(ctx context.Context, p solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	if m.getProgramAccountsFunc == nil {
		return nil, nil
	}
	return m.getProgramAccountsFunc(ctx, p, opts)
}

func (m *mockRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash(programtest.NewKey())}}, nil
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	m.sendCalls.Add(1)
	if m.sendTransactionFunc == nil {
		return tx.Signatures[0], nil
	}
	return m.sendTransactionFunc(ctx, tx)
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.statusCalls.Add(1)
	if m.getSignatureStatusesFunc == nil {
		return confirmed(), nil
	}
	return m.getSignatureStatusesFunc(ctx, sigs[0])
}

func (m *mockRPC) GetBalance(ctx context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.getBalanceFunc == nil {
		return &rpc.GetBalanceResult{}, nil
	}
	return m.getBalanceFunc(ctx, account)
}

func confirmed() *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{
		{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
	}}
}

func pending() *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}
}

func newTestClient(t *testing.T, m *mockRPC, opts Options) (*Client, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return New(m, key, opts, zap.NewNop()), key
}

func testInstructions() []solana.Instruction {
	return []solana.Instruction{
		program.NewUpdateTotalStakeSecondsInstruction(programtest.NewKey(), programtest.NewKey()),
	}
}

// ── FetchAccount ──────────────────────────────────────────────────────────────

func TestFetchAccount_Found(t *testing.T) {
	addr := programtest.NewKey()
	data := []byte{1, 2, 3, 4}
	m := &mockRPC{
		getAccountInfoFunc: func(_ context.Context, a solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			if !a.Equals(addr) {
				t.Errorf("address: got %s want %s", a, addr)
			}
			return &rpc.GetAccountInfoResult{Value: &rpc.Account{
				Lamports: 99,
				Data:     rpc.DataBytesOrJSONFromBytes(data),
			}}, nil
		},
	}
	c, _ := newTestClient(t, m, Options{})

	acc, err := c.FetchAccount(context.Background(), addr)
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if acc.Lamports != 99 {
		t.Errorf("lamports: got %d want 99", acc.Lamports)
	}
	if string(acc.Data) != string(data) {
		t.Errorf("data: got %v want %v", acc.Data, data)
	}
}

func TestFetchAccount_NotFound(t *testing.T) {
	c, _ := newTestClient(t, &mockRPC{}, Options{})

	_, err := c.FetchAccount(context.Background(), programtest.NewKey())
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	exists, err := c.AccountExists(context.Background(), programtest.NewKey())
	if err != nil || exists {
		t.Errorf("AccountExists: got (%v, %v) want (false, nil)", exists, err)
	}
}

func TestAccountExists_PropagatesErrors(t *testing.T) {
	m := &mockRPC{
		getAccountInfoFunc: func(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			return nil, errors.New("invalid param")
		},
	}
	c, _ := newTestClient(t, m, Options{})

	if _, err := c.AccountExists(context.Background(), programtest.NewKey()); err == nil {
		t.Fatal("expected error")
	}
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func TestBalance_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	m := &mockRPC{
		getBalanceFunc: func(context.Context, solana.PublicKey) (*rpc.GetBalanceResult, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("503 service unavailable")
			}
			return &rpc.GetBalanceResult{Value: 5 * LamportsPerSOL}, nil
		},
	}
	c, _ := newTestClient(t, m, Options{})

	bal, err := c.Balance(context.Background(), programtest.NewKey())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 5*LamportsPerSOL {
		t.Errorf("balance: got %d", bal)
	}
	if calls.Load() != 2 {
		t.Errorf("calls: got %d want 2", calls.Load())
	}
}

func TestBalance_RetryBackoffUsesClientClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	m := &mockRPC{
		getBalanceFunc: func(context.Context, solana.PublicKey) (*rpc.GetBalanceResult, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("429 Too Many Requests")
			}
			return &rpc.GetBalanceResult{Value: 7}, nil
		},
	}
	c, _ := newTestClient(t, m, Options{
		Clock: clock,
		Retry: retry.Config{MaxAttempts: 2, BaseBackoff: time.Minute, MaxBackoff: time.Minute},
	})

	type result struct {
		bal uint64
		err error
	}
	done := make(chan result, 1)
	go func() {
		bal, err := c.Balance(context.Background(), programtest.NewKey())
		done <- result{bal, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for backoff: %v", err)
	}
	clock.Advance(time.Minute)

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Balance: %v", r.err)
		}
		if r.bal != 7 {
			t.Errorf("balance: got %d want 7", r.bal)
		}
	case <-ctx.Done():
		t.Fatal("Balance did not return after the clock advanced")
	}
	if calls.Load() != 2 {
		t.Errorf("calls: got %d want 2", calls.Load())
	}
}

func TestProgramAccounts_PassesFilters(t *testing.T) {
	pool := programtest.NewKey()
	entry := programtest.NewKey()
	m := &mockRPC{
		getProgramAccountsFunc: func(_ context.Context, p solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
			if !p.Equals(program.StakePoolProgramID) {
				t.Errorf("program: got %s", p)
			}
			if len(opts.Filters) != 2 {
				t.Errorf("filters: got %d want 2", len(opts.Filters))
			}
			return rpc.GetProgramAccountsResult{
				{Pubkey: entry, Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes([]byte{7})}},
				nil,
			}, nil
		},
	}
	c, _ := newTestClient(t, m, Options{})

	accs, err := c.ProgramAccounts(context.Background(), program.StakePoolProgramID, program.StakeEntryFilters(pool))
	if err != nil {
		t.Fatalf("ProgramAccounts: %v", err)
	}
	if len(accs) != 1 || !accs[0].Address.Equals(entry) {
		t.Fatalf("accounts: got %+v", accs)
	}
}

// ── Submit ────────────────────────────────────────────────────────────────────

func TestSubmit_SignsWithOperatorAndWaitsForConfirmation(t *testing.T) {
	var polls atomic.Int32
	m := &mockRPC{
		getSignatureStatusesFunc: func(context.Context, solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			if polls.Add(1) < 3 {
				return pending(), nil
			}
			return confirmed(), nil
		},
	}
	var sent *solana.Transaction
	m.sendTransactionFunc = func(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
		sent = tx
		return tx.Signatures[0], nil
	}
	c, key := newTestClient(t, m, Options{})

	sig, err := c.Submit(context.Background(), testInstructions())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sent == nil {
		t.Fatal("transaction was not sent")
	}
	if !sent.Message.AccountKeys[0].Equals(key.PublicKey()) {
		t.Errorf("fee payer: got %s want %s", sent.Message.AccountKeys[0], key.PublicKey())
	}
	if sig != sent.Signatures[0] {
		t.Errorf("signature: got %s want %s", sig, sent.Signatures[0])
	}
	if polls.Load() != 3 {
		t.Errorf("status polls: got %d want 3", polls.Load())
	}
}

func TestSubmit_SendIsNotRetried(t *testing.T) {
	m := &mockRPC{
		sendTransactionFunc: func(context.Context, *solana.Transaction) (solana.Signature, error) {
			return solana.Signature{}, errors.New("503 service unavailable")
		},
	}
	c, _ := newTestClient(t, m, Options{})

	if _, err := c.Submit(context.Background(), testInstructions()); err == nil {
		t.Fatal("expected error")
	}
	if m.sendCalls.Load() != 1 {
		t.Errorf("send calls: got %d want 1", m.sendCalls.Load())
	}
	if m.statusCalls.Load() != 0 {
		t.Errorf("status calls: got %d want 0", m.statusCalls.Load())
	}
}

func TestSubmit_TransactionError(t *testing.T) {
	m := &mockRPC{
		getSignatureStatusesFunc: func(context.Context, solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{
				{Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
			}}, nil
		},
	}
	c, _ := newTestClient(t, m, Options{})

	sig, err := c.Submit(context.Background(), testInstructions())
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	if sig == (solana.Signature{}) {
		t.Error("signature should be returned alongside a confirmation error")
	}
}

func TestSubmit_ConfirmTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := &mockRPC{
		getSignatureStatusesFunc: func(context.Context, solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			return pending(), nil
		},
	}
	c, _ := newTestClient(t, m, Options{
		Clock:          clock,
		ConfirmTimeout: 30 * time.Second,
		PollInterval:   time.Minute,
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), testInstructions())
		errCh <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("waiting for confirm loop: %v", err)
	}
	clock.Advance(30 * time.Second)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConfirmTimeout) {
			t.Fatalf("expected ErrConfirmTimeout, got %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Submit did not return after the confirm timeout")
	}
}

// ── Cluster helpers ───────────────────────────────────────────────────────────

func TestEndpointFor(t *testing.T) {
	cases := map[string]string{
		"mainnet":      rpc.MainNetBeta_RPC,
		"mainnet-beta": rpc.MainNetBeta_RPC,
		"devnet":       rpc.DevNet_RPC,
		"TESTNET":      rpc.TestNet_RPC,
		"localnet":     rpc.LocalNet_RPC,
	}
	for in, want := range cases {
		got, err := EndpointFor(in)
		if err != nil {
			t.Errorf("EndpointFor(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("EndpointFor(%q): got %s want %s", in, got, want)
		}
	}
	if _, err := EndpointFor("moonnet"); err == nil {
		t.Error("expected error for unknown cluster")
	}
}

func TestExplorerURL(t *testing.T) {
	var sig solana.Signature
	sig[0] = 1
	base := "https://explorer.solana.com/tx/" + sig.String()

	if got := ExplorerURL(sig, "mainnet"); got != base {
		t.Errorf("mainnet: got %s want %s", got, base)
	}
	if got := ExplorerURL(sig, "devnet"); got != base+"?cluster=devnet" {
		t.Errorf("devnet: got %s", got)
	}
}

func TestLamportsToSOL(t *testing.T) {
	if got := LamportsToSOL(2_000_000); got != 0.002 {
		t.Errorf("got %v want 0.002", got)
	}
}
