package program

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrDiscriminatorMismatch is returned when account data belongs to another account type.
var ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

// StakeEntryPoolOffset is the byte offset of the pool key inside StakeEntry data
// (discriminator + bump).
const StakeEntryPoolOffset = 8 + 1

// DistributorKind mirrors the on-chain RewardDistributorKind enum.
type DistributorKind uint8

const (
	DistributorKindMint DistributorKind = iota
	DistributorKindTreasury
)

func (k DistributorKind) String() string {
	switch k {
	case DistributorKindMint:
		return "mint"
	case DistributorKindTreasury:
		return "treasury"
	default:
		return "unknown"
	}
}

// StakeEntry is one staked item of a pool.
type StakeEntry struct {
	// Address is the account key; it is not part of the account data.
	Address solana.PublicKey

	Bump                 uint8
	Pool                 solana.PublicKey
	Amount               uint64
	OriginalMint         solana.PublicKey
	OriginalMintClaimed  bool
	LastStaker           solana.PublicKey
	LastStakedAt         int64
	TotalStakeSeconds    bin.Uint128
	StakeMintClaimed     bool
	Kind                 uint8
	StakeMint            *solana.PublicKey
	CooldownStartSeconds *int64
	LastUpdatedAt        *int64
}

// Active reports whether the entry is currently staked. Unstaking resets
// the last staker to the default key.
func (e *StakeEntry) Active() bool {
	return !e.LastStaker.IsZero()
}

// RewardDistributor is the per-pool reward configuration.
type RewardDistributor struct {
	Address solana.PublicKey

	Bump                     uint8
	StakePool                solana.PublicKey
	Kind                     DistributorKind
	Authority                solana.PublicKey
	RewardMint               solana.PublicKey
	RewardAmount             uint64
	RewardDurationSeconds    bin.Uint128
	RewardsIssued            bin.Uint128
	MaxSupply                *uint64
	DefaultMultiplier        uint64
	MultiplierDecimals       uint8
	MaxRewardSecondsReceived *bin.Uint128
}

// RewardEntry is the per-(distributor, stake entry) accounting record.
type RewardEntry struct {
	Address solana.PublicKey

	Bump                  uint8
	StakeEntry            solana.PublicKey
	RewardDistributor     solana.PublicKey
	RewardSecondsReceived bin.Uint128
	Multiplier            uint64
}

// StakeEntryFilters selects the StakeEntry accounts of one pool in a
// getProgramAccounts call.
func StakeEntryFilters(pool solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(StakeEntryDiscriminator[:])}},
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: StakeEntryPoolOffset, Bytes: solana.Base58(pool.Bytes())}},
	}
}

// DecodeStakeEntry parses StakeEntry account data. Optional trailing fields
// added by later program versions are read only when present.
func DecodeStakeEntry(addr solana.PublicKey, data []byte) (*StakeEntry, error) {
	r, err := newReader(data, StakeEntryDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("stake entry %s: %w", addr, err)
	}
	e := &StakeEntry{Address: addr}
	e.Bump = r.u8()
	e.Pool = r.pubkey()
	e.Amount = r.u64()
	e.OriginalMint = r.pubkey()
	e.OriginalMintClaimed = r.boolean()
	e.LastStaker = r.pubkey()
	e.LastStakedAt = r.i64()
	e.TotalStakeSeconds = r.u128()
	e.StakeMintClaimed = r.boolean()
	e.Kind = r.u8()
	if r.more() {
		e.StakeMint = r.optPubkey()
	}
	if r.more() {
		e.CooldownStartSeconds = r.optI64()
	}
	if r.more() {
		e.LastUpdatedAt = r.optI64()
	}
	if r.err != nil {
		return nil, fmt.Errorf("stake entry %s: %w", addr, r.err)
	}
	return e, nil
}

// DecodeRewardDistributor parses RewardDistributor account data.
func DecodeRewardDistributor(addr solana.PublicKey, data []byte) (*RewardDistributor, error) {
	r, err := newReader(data, RewardDistributorDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("reward distributor %s: %w", addr, err)
	}
	d := &RewardDistributor{Address: addr}
	d.Bump = r.u8()
	d.StakePool = r.pubkey()
	d.Kind = DistributorKind(r.u8())
	d.Authority = r.pubkey()
	d.RewardMint = r.pubkey()
	d.RewardAmount = r.u64()
	d.RewardDurationSeconds = r.u128()
	d.RewardsIssued = r.u128()
	d.MaxSupply = r.optU64()
	d.DefaultMultiplier = r.u64()
	d.MultiplierDecimals = r.u8()
	if r.more() {
		d.MaxRewardSecondsReceived = r.optU128()
	}
	if r.err != nil {
		return nil, fmt.Errorf("reward distributor %s: %w", addr, r.err)
	}
	return d, nil
}

// DecodeRewardEntry parses RewardEntry account data.
func DecodeRewardEntry(addr solana.PublicKey, data []byte) (*RewardEntry, error) {
	r, err := newReader(data, RewardEntryDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("reward entry %s: %w", addr, err)
	}
	e := &RewardEntry{Address: addr}
	e.Bump = r.u8()
	e.StakeEntry = r.pubkey()
	e.RewardDistributor = r.pubkey()
	e.RewardSecondsReceived = r.u128()
	e.Multiplier = r.u64()
	if r.err != nil {
		return nil, fmt.Errorf("reward entry %s: %w", addr, r.err)
	}
	return e, nil
}

// reader wraps a borsh decoder and keeps the first error so decoders can
// read field after field without checking each one.
type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(data []byte, want Discriminator) (*reader, error) {
	if len(data) < len(want) {
		return nil, fmt.Errorf("data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(want)], want[:]) {
		return nil, ErrDiscriminatorMismatch
	}
	return &reader{dec: bin.NewBorshDecoder(data[len(want):])}, nil
}

func (r *reader) more() bool {
	return r.err == nil && r.dec.Remaining() > 0
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *reader) boolean() bool {
	if r.err != nil {
		return false
	}
	v, err := r.dec.ReadBool()
	r.err = err
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.err = err
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(bin.LE)
	r.err = err
	return v
}

func (r *reader) u128() bin.Uint128 {
	if r.err != nil {
		return bin.Uint128{}
	}
	v, err := r.dec.ReadUint128(bin.LE)
	r.err = err
	return v
}

func (r *reader) pubkey() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

// some reads the borsh Option tag. Tags other than 0 and 1 are an error.
func (r *reader) some() bool {
	tag := r.u8()
	if r.err != nil {
		return false
	}
	if tag > 1 {
		r.err = fmt.Errorf("invalid option tag %d", tag)
		return false
	}
	return tag == 1
}

func (r *reader) optPubkey() *solana.PublicKey {
	if !r.some() {
		return nil
	}
	v := r.pubkey()
	return &v
}

func (r *reader) optI64() *int64 {
	if !r.some() {
		return nil
	}
	v := r.i64()
	return &v
}

func (r *reader) optU64() *uint64 {
	if !r.some() {
		return nil
	}
	v := r.u64()
	return &v
}

func (r *reader) optU128() *bin.Uint128 {
	if !r.some() {
		return nil
	}
	v := r.u128()
	return &v
}
