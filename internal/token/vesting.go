package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rudolf-ledger/internal/types"
)

const (
	// UnlockSlots is the number of equal portions of an entitlement
	UnlockSlots = 12
	// MonthSeconds is the interval between unlocks, a twelfth of 365 days
	MonthSeconds int64 = yearSeconds / UnlockSlots
)

var slots = uint256.NewInt(UnlockSlots)

// claimKey identifies the claim progress of one account on one distribution
type claimKey struct {
	account    common.Address
	snapshotID uint64
}

// VestingLedger tracks, per (account, distribution), how many twelfths
// were already claimed. Amounts are always recomputed from the
// entitlement and a twelfth count so repeated partial claims never drift.
type VestingLedger struct {
	claimed map[claimKey]int
	// settled counts the claims of each account
	settled map[common.Address]uint64
}

// NewVestingLedger creates an empty vesting ledger
func NewVestingLedger() *VestingLedger {
	return &VestingLedger{
		claimed: make(map[claimKey]int),
		settled: make(map[common.Address]uint64),
	}
}

// Claims returns the number of claims account has settled
func (v *VestingLedger) Claims(account common.Address) uint64 {
	return v.settled[account]
}

// Claimed returns the twelfths already claimed by account on rec
func (v *VestingLedger) Claimed(account common.Address, rec AirdropRecord) int {
	return v.claimed[claimKey{account, rec.SnapshotID}]
}

func (v *VestingLedger) setClaimed(account common.Address, rec AirdropRecord, twelfths int) {
	k := claimKey{account, rec.SnapshotID}
	if twelfths > v.claimed[k] {
		v.claimed[k] = twelfths
	}
}

// NextUnlock returns the first unlock instant of rec strictly after now,
// or 0 when every slot is already unlocked.
func NextUnlock(rec AirdropRecord, now int64) int64 {
	k := UnlockedTwelfths(rec, now)
	if k >= UnlockSlots {
		return 0
	}
	return rec.Time + int64(k)*MonthSeconds
}

// Entitlement is floor(emission * balanceAtSnapshot / supplyAtSnapshot)
func Entitlement(rec AirdropRecord, balanceAtSnapshot *uint256.Int) *uint256.Int {
	if rec.TotalSupply.IsZero() || balanceAtSnapshot.IsZero() {
		return new(uint256.Int)
	}
	// the product is computed in 512 bits, the quotient fits since
	// balance <= supply.
	out, _ := new(uint256.Int).MulDivOverflow(rec.Amount, balanceAtSnapshot, rec.TotalSupply)
	return out
}

// UnlockedTwelfths returns how many slots of rec are unlocked at now
func UnlockedTwelfths(rec AirdropRecord, now int64) int {
	if now < rec.Time {
		return 0
	}
	n := 1 + (now-rec.Time)/MonthSeconds
	if n > UnlockSlots {
		return UnlockSlots
	}
	return int(n)
}

// portion returns entitlement * twelfths / 12
func portion(entitlement *uint256.Int, twelfths int) *uint256.Int {
	out := new(uint256.Int).Mul(entitlement, uint256.NewInt(uint64(twelfths)))
	return out.Div(out, slots)
}

// ClaimableAmount returns what account can still claim on rec at now,
// given its entitlement.
func (v *VestingLedger) ClaimableAmount(account common.Address, rec AirdropRecord, entitlement *uint256.Int, now int64) *uint256.Int {
	unlocked := UnlockedTwelfths(rec, now)
	claimed := v.Claimed(account, rec)
	if claimed >= unlocked || entitlement.IsZero() {
		return new(uint256.Int)
	}
	out := portion(entitlement, unlocked)
	return out.Sub(out, portion(entitlement, claimed))
}

// Schedule lists the still-locked slots of rec at now
func Schedule(rec AirdropRecord, entitlement *uint256.Int, now int64) []types.VestedAmount {
	per := new(uint256.Int).Div(entitlement, slots).Dec()
	var out []types.VestedAmount
	for k := UnlockedTwelfths(rec, now); k < UnlockSlots; k++ {
		out = append(out, types.VestedAmount{
			ReleaseTime: rec.Time + int64(k)*MonthSeconds,
			Amount:      per,
		})
	}
	return out
}
