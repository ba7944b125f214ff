// Package programtest builds raw account data for tests.
package programtest

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/0gfoundation/stake-reward-claimer/internal/program"
)

type writer struct{ bytes.Buffer }

func (w *writer) u8(v uint8) { w.WriteByte(v) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) u128(lo uint64) {
	w.u64(lo)
	w.u64(0)
}

func (w *writer) pubkey(k solana.PublicKey) { w.Write(k[:]) }

// NewKey returns a fresh random public key.
func NewKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// StakeEntry encodes a stake entry with the given pool and last staker.
// A zero lastStaker encodes an unstaked entry.
func StakeEntry(pool, lastStaker solana.PublicKey, totalStakeSeconds uint64) []byte {
	var w writer
	w.Write(program.StakeEntryDiscriminator[:])
	w.u8(254)
	w.pubkey(pool)
	w.u64(1)
	w.pubkey(NewKey()) // original mint
	w.boolean(false)
	w.pubkey(lastStaker)
	w.i64(1_700_000_000)
	w.u128(totalStakeSeconds)
	w.boolean(false)
	w.u8(0)
	w.u8(0) // stake mint: None
	w.u8(1) // cooldown start: Some(42)
	w.i64(42)
	return w.Bytes()
}

// RewardDistributor encodes a reward distributor of the given kind.
func RewardDistributor(pool, rewardMint solana.PublicKey, kind program.DistributorKind) []byte {
	var w writer
	w.Write(program.RewardDistributorDiscriminator[:])
	w.u8(253)
	w.pubkey(pool)
	w.u8(uint8(kind))
	w.pubkey(NewKey()) // authority
	w.pubkey(rewardMint)
	w.u64(1_000)
	w.u128(86_400)
	w.u128(0)
	w.u8(1) // max supply: Some(5_000_000)
	w.u64(5_000_000)
	w.u64(1)
	w.u8(0)
	w.u8(0) // max reward seconds: None
	return w.Bytes()
}

// RewardEntry encodes a reward entry for the pair.
func RewardEntry(stakeEntry, rewardDistributor solana.PublicKey) []byte {
	var w writer
	w.Write(program.RewardEntryDiscriminator[:])
	w.u8(252)
	w.pubkey(stakeEntry)
	w.pubkey(rewardDistributor)
	w.u128(3_600)
	w.u64(1)
	return w.Bytes()
}
