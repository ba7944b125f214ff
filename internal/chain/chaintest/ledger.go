// Package chaintest provides an in-memory ledger for tests of packages that
// read accounts and submit transactions through chain.Client.
package chaintest

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/0gfoundation/stake-reward-claimer/internal/chain"
)

// Ledger stores accounts by address and records every submitted batch.
//
// SubmitDelay holds each Submit call open to let concurrent calls overlap.
// Lamports is the balance reported for every address. SubmitFunc, when set,
// replaces the default successful submission.
type Ledger struct {
	OperatorKey solana.PublicKey
	SubmitDelay time.Duration
	Lamports    uint64
	SubmitFunc  func(ixs []solana.Instruction) (solana.Signature, error)

	mu          sync.Mutex
	accounts    map[solana.PublicKey]chain.Account
	owners      map[solana.PublicKey]solana.PublicKey
	fetchErrs   map[solana.PublicKey]error
	fetches     map[solana.PublicKey]int
	submitted   [][]solana.Instruction
	inflight    int
	maxInflight int
}

func New(operator solana.PublicKey) *Ledger {
	return &Ledger{
		OperatorKey: operator,
		accounts:    make(map[solana.PublicKey]chain.Account),
		owners:      make(map[solana.PublicKey]solana.PublicKey),
		fetchErrs:   make(map[solana.PublicKey]error),
		fetches:     make(map[solana.PublicKey]int),
	}
}

// Put stores data at addr, owned by owner.
func (l *Ledger) Put(owner, addr solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[addr] = chain.Account{Address: addr, Lamports: 1, Data: data}
	l.owners[addr] = owner
}

// FailFetch makes every fetch of addr return err.
func (l *Ledger) FailFetch(addr solana.PublicKey, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchErrs[addr] = err
}

// Fetches returns how many times addr was fetched.
func (l *Ledger) Fetches(addr solana.PublicKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches[addr]
}

// Submitted returns a copy of every batch passed to Submit.
func (l *Ledger) Submitted() [][]solana.Instruction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]solana.Instruction, len(l.submitted))
	copy(out, l.submitted)
	return out
}

// MaxInflight is the highest number of concurrent Submit calls observed.
func (l *Ledger) MaxInflight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxInflight
}

func (l *Ledger) Operator() solana.PublicKey { return l.OperatorKey }

func (l *Ledger) Balance(context.Context, solana.PublicKey) (uint64, error) { return l.Lamports, nil }

func (l *Ledger) FetchAccount(_ context.Context, addr solana.PublicKey) (*chain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches[addr]++
	if err := l.fetchErrs[addr]; err != nil {
		return nil, err
	}
	acc, ok := l.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrAccountNotFound, addr)
	}
	return &acc, nil
}

func (l *Ledger) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	_, err := l.FetchAccount(ctx, addr)
	if err == nil {
		return true, nil
	}
	l.mu.Lock()
	_, failed := l.fetchErrs[addr]
	l.mu.Unlock()
	if failed {
		return false, err
	}
	return false, nil
}

// ProgramAccounts applies memcmp filters to the accounts owned by program.
func (l *Ledger) ProgramAccounts(_ context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]chain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fetchErrs[program]; err != nil {
		return nil, err
	}
	var out []chain.Account
	for addr, acc := range l.accounts {
		if !l.owners[addr].Equals(program) || !matches(acc.Data, filters) {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

func (l *Ledger) Submit(_ context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	l.mu.Lock()
	l.submitted = append(l.submitted, ixs)
	l.inflight++
	l.maxInflight = max(l.maxInflight, l.inflight)
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inflight--
		l.mu.Unlock()
	}()

	if l.SubmitDelay > 0 {
		time.Sleep(l.SubmitDelay)
	}
	if l.SubmitFunc != nil {
		return l.SubmitFunc(ixs)
	}
	var sig solana.Signature
	_, _ = rand.Read(sig[:])
	return sig, nil
}

func matches(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.Memcmp == nil {
			continue
		}
		end := int(f.Memcmp.Offset) + len(f.Memcmp.Bytes)
		if end > len(data) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}
