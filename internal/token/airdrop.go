package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/types"
)

// NextDistributionYear returns the calendar year of the pending distribution
func (t *Token) NextDistributionYear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched.State().NextYear
}

// NextDistributionTime returns the unix time of the pending distribution
func (t *Token) NextDistributionTime() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched.State().NextTime
}

// LastAirdropSnapshotID returns the snapshot id of the latest distribution
func (t *Token) LastAirdropSnapshotID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched.LastSnapshotID()
}

// DistributionCount returns the number of distributions so far
func (t *Token) DistributionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched.Count()
}

// EmissionPerDistribution returns the fixed emission amount
func (t *Token) EmissionPerDistribution() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched.Emission()
}

// Airdrops returns a copy of every distribution record, oldest first
func (t *Token) Airdrops() []AirdropRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs := t.sched.Records()
	out := make([]AirdropRecord, len(recs))
	for i, r := range recs {
		out[i] = AirdropRecord{
			Year:        r.Year,
			SnapshotID:  r.SnapshotID,
			Time:        r.Time,
			TotalSupply: r.TotalSupply.Clone(),
			Amount:      r.Amount.Clone(),
		}
	}
	return out
}

// BalanceOfAt returns the balance account held at snapshot id
func (t *Token) BalanceOfAt(account common.Address, id uint64) (*uint256.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snaps.BalanceAt(id, account, t.ledger.BalanceOf(account))
}

// TotalSupplyAt returns the total supply at snapshot id
func (t *Token) TotalSupplyAt(id uint64) (*uint256.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snaps.TotalSupplyAt(id, t.ledger.totalSupply)
}

func (t *Token) entitlement(account common.Address, rec AirdropRecord) *uint256.Int {
	// rec.SnapshotID always exists; the store only rejects unknown ids
	bal, err := t.snaps.BalanceAt(rec.SnapshotID, account, t.ledger.BalanceOf(account))
	if err != nil {
		return new(uint256.Int)
	}
	return Entitlement(rec, bal)
}

// Entitlement returns account's full share of the distribution recorded
// at snapshot id.
func (t *Token) Entitlement(account common.Address, snapshotID uint64) (*uint256.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range t.sched.Records() {
		if rec.SnapshotID == snapshotID {
			return t.entitlement(account, rec), nil
		}
	}
	return nil, apperrors.NewUnknownSnapshotError(snapshotID, t.snaps.CurrentID())
}

// ClaimedTwelfths returns the slots account already claimed on the
// distribution recorded at snapshot id.
func (t *Token) ClaimedTwelfths(account common.Address, snapshotID uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vesting.claimed[claimKey{account, snapshotID}]
}

// claimable returns the per-record claimable amounts and their sum
func (t *Token) claimable(account common.Address, now int64) ([]*uint256.Int, *uint256.Int, error) {
	recs := t.sched.Records()
	parts := make([]*uint256.Int, len(recs))
	total := new(uint256.Int)
	for i, rec := range recs {
		parts[i] = t.vesting.ClaimableAmount(account, rec, t.entitlement(account, rec), now)
		if _, overflow := total.AddOverflow(total, parts[i]); overflow {
			return nil, nil, apperrors.NewOverflowError("claimable total")
		}
	}
	return parts, total, nil
}

// ClaimableAmount returns the total account can claim at now across every
// distribution. It has no side effect.
func (t *Token) ClaimableAmount(account common.Address, now int64) (*uint256.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, total, err := t.claimable(account, now)
	return total, err
}

// ClaimVersion returns the version a claimable amount of account computed
// now would carry.
func (t *Token) ClaimVersion(account common.Address) types.ClaimableVersion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.claimVersion(account)
}

func (t *Token) claimVersion(account common.Address) types.ClaimableVersion {
	return types.ClaimableVersion{
		Account:       account,
		Distributions: t.sched.Count(),
		Claims:        t.vesting.Claims(account),
	}
}

// ClaimableQuote returns ClaimableAmount together with its version and the
// next unlock instant of account, all read atomically.
func (t *Token) ClaimableQuote(account common.Address, now int64) (*types.ClaimableQuote, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, total, err := t.claimable(account, now)
	if err != nil {
		return nil, err
	}

	var next int64
	for _, rec := range t.sched.Records() {
		if t.entitlement(account, rec).IsZero() {
			continue
		}
		if u := NextUnlock(rec, now); u != 0 && (next == 0 || u < next) {
			next = u
		}
	}
	return &types.ClaimableQuote{
		ClaimableVersion: t.claimVersion(account),
		Amount:           total,
		ValidUntil:       next,
	}, nil
}

// VestedSchedule lists every still-locked unlock of account at now,
// ordered by release time.
func (t *Token) VestedSchedule(account common.Address, now int64) []types.VestedAmount {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []types.VestedAmount{}
	for _, rec := range t.sched.Records() {
		out = append(out, Schedule(rec, t.entitlement(account, rec), now)...)
	}
	return out
}

// Claim settles everything account can claim at now with a single mint.
// Only distributions that existed when the call started are settled; a
// boundary crossed by the mint itself snapshots the pre-mint balances.
func (t *Token) Claim(now int64, account common.Address) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.guard.whenNotPaused(reasonPaused); err != nil {
		return nil, err
	}
	if account == (common.Address{}) {
		return nil, apperrors.NewInvalidAddressError("ERC20: mint to the zero address")
	}

	parts, total, err := t.claimable(account, now)
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return nil, apperrors.NewNothingToClaimError(account.Hex())
	}
	if err := t.ledger.checkMint(total); err != nil {
		return nil, err
	}

	recs := t.sched.Records()
	for i, rec := range recs {
		if !parts[i].IsZero() {
			t.vesting.setClaimed(account, rec, UnlockedTwelfths(rec, now))
		}
	}
	t.vesting.settled[account]++

	c := &call{now: now}
	t.mint(c, account, total)
	c.receipt.Amount = total
	return &c.receipt, nil
}
