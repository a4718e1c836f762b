package token

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/types"
)

var (
	owner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	user1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	user2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

const (
	deployTime int64 = 1640000000 // 2021-12-20
	xmas2021   int64 = 1640390400
)

func newTestToken(t *testing.T) *Token {
	t.Helper()
	tok, receipt, err := New(Config{
		Deployer:       owner,
		DeployTime:     deployTime,
		ReferenceEpoch: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 2)
	return tok
}

func tokens(n uint64) *uint256.Int {
	return types.WithDecimals(n)
}

func kinds(evs []events.Event) []types.EventKind {
	out := make([]types.EventKind, len(evs))
	for i, e := range evs {
		out[i] = e.Kind
	}
	return out
}

func TestNew_Genesis(t *testing.T) {
	tok, receipt, err := New(Config{
		Deployer:       owner,
		DeployTime:     deployTime,
		ReferenceEpoch: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "4200000000000000000000000000", tok.TotalSupply().Dec())
	assert.Equal(t, tok.TotalSupply(), tok.BalanceOf(owner))
	assert.Equal(t, 18, tok.Decimals())
	assert.Equal(t, "Rudolf", tok.Name())
	assert.Equal(t, "RUDOLF", tok.Symbol())
	assert.Equal(t, owner, tok.Owner())
	assert.False(t, tok.Paused())
	assert.Equal(t, 2021, tok.NextDistributionYear())
	assert.Equal(t, xmas2021, tok.NextDistributionTime())
	assert.Equal(t, 0, tok.DistributionCount())
	assert.Equal(t, uint64(0), tok.LastAirdropSnapshotID())

	assert.Equal(t, []types.EventKind{types.EventOwnershipTransferred, types.EventTransfer}, kinds(receipt.Events))
	mint := receipt.Events[1]
	assert.Equal(t, common.Address{}, *mint.From)
	assert.Equal(t, owner, *mint.To)
	assert.Equal(t, tok.TotalSupply().Dec(), mint.Amount)
}

func TestNew_Validation(t *testing.T) {
	_, _, err := New(Config{DeployTime: deployTime})
	assert.ErrorIs(t, err, apperrors.ErrInvalidOwner)

	_, _, err = New(Config{Deployer: owner, InitialSupply: new(uint256.Int)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestNew_EpochDefaultsToDeployTime(t *testing.T) {
	// deployed after Dec-25 2021, the first distribution is the next year
	tok, _, err := New(Config{Deployer: owner, DeployTime: xmas2021 + 1})
	require.NoError(t, err)
	assert.Equal(t, 2022, tok.NextDistributionYear())
	assert.Equal(t, XmasTime(2022), tok.NextDistributionTime())
}

func TestTransfer_DistributionAtBoundary(t *testing.T) {
	tok := newTestToken(t)

	receipt, err := tok.Transfer(xmas2021, owner, user1, tokens(1))
	require.NoError(t, err)

	assert.Equal(t, []types.EventKind{
		types.EventSnapshot,
		types.EventXmasAirdrop,
		types.EventTransfer,
	}, kinds(receipt.Events))
	assert.Equal(t, uint64(1), receipt.Events[0].SnapshotID)
	assert.Equal(t, 2021, receipt.Events[1].Year)
	assert.Equal(t, "1200000000000000000000000000", receipt.Events[1].Amount)
	assert.Equal(t, 1, receipt.Distributions)

	assert.Equal(t, 1, tok.DistributionCount())
	assert.Equal(t, uint64(1), tok.LastAirdropSnapshotID())
	assert.Equal(t, 2022, tok.NextDistributionYear())
	assert.Equal(t, XmasTime(2022), tok.NextDistributionTime())

	recs := tok.Airdrops()
	require.Len(t, recs, 1)
	assert.Equal(t, xmas2021, recs[0].Time)
	assert.Equal(t, InitialSupply, recs[0].TotalSupply)

	// the snapshot holds the pre-transfer balances
	bal, err := tok.BalanceOfAt(user1, 1)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	assert.Equal(t, tokens(1), tok.BalanceOf(user1))
}

func TestTransfer_BeforeBoundaryNoDistribution(t *testing.T) {
	tok := newTestToken(t)

	receipt, err := tok.Transfer(xmas2021-1, owner, user1, tokens(1))
	require.NoError(t, err)
	assert.Equal(t, []types.EventKind{types.EventTransfer}, kinds(receipt.Events))
	assert.Equal(t, 0, tok.DistributionCount())
}

func TestTransfer_Errors(t *testing.T) {
	tok := newTestToken(t)

	tests := []struct {
		name    string
		from    common.Address
		to      common.Address
		amount  *uint256.Int
		wantErr error
	}{
		{"insufficient balance", user1, user2, tokens(1), apperrors.ErrInsufficientBalance},
		{"to zero address", owner, common.Address{}, tokens(1), apperrors.ErrInvalidAddress},
		{"from zero address", common.Address{}, user1, tokens(1), apperrors.ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tok.Transfer(xmas2021+10, tt.from, tt.to, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// a failed call does not run catch-up
	assert.Equal(t, 0, tok.DistributionCount())
	assert.Equal(t, InitialSupply, tok.BalanceOf(owner))
}

func TestTransfer_ZeroAmountAndSelf(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, new(uint256.Int))
	require.NoError(t, err)
	_, err = tok.Transfer(deployTime, owner, owner, tokens(5))
	require.NoError(t, err)

	assert.Equal(t, InitialSupply, tok.BalanceOf(owner))
	assert.True(t, tok.BalanceOf(user1).IsZero())
}

func TestApproveAndTransferFrom(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Approve(deployTime, owner, user1, tokens(10))
	require.NoError(t, err)
	assert.Equal(t, tokens(10), tok.Allowance(owner, user1))

	_, err = tok.TransferFrom(deployTime, user1, owner, user2, tokens(11))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientAllowance)

	receipt, err := tok.TransferFrom(deployTime, user1, owner, user2, tokens(4))
	require.NoError(t, err)
	assert.Equal(t, []types.EventKind{types.EventApproval, types.EventTransfer}, kinds(receipt.Events))
	assert.Equal(t, tokens(6), tok.Allowance(owner, user1))
	assert.Equal(t, tokens(4), tok.BalanceOf(user2))
}

func TestTransferFrom_UnlimitedAllowance(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Approve(deployTime, owner, user1, maxUint256)
	require.NoError(t, err)

	receipt, err := tok.TransferFrom(deployTime, user1, owner, user2, tokens(4))
	require.NoError(t, err)
	assert.Equal(t, []types.EventKind{types.EventTransfer}, kinds(receipt.Events))
	assert.Equal(t, maxUint256, tok.Allowance(owner, user1))
}

func TestTransferFrom_InsufficientBalanceKeepsAllowance(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Approve(deployTime, user1, user2, tokens(10))
	require.NoError(t, err)

	_, err = tok.TransferFrom(deployTime, user2, user1, owner, tokens(1))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.Equal(t, tokens(10), tok.Allowance(user1, user2))
}

func TestApprove_ZeroAddress(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Approve(deployTime, owner, common.Address{}, tokens(1))
	assert.ErrorIs(t, err, apperrors.ErrInvalidAddress)
}

func TestClaim_VestingOverTwelveMonths(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(1000))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	require.NoError(t, err)

	ownerAtSnap, err := tok.BalanceOfAt(owner, 1)
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).Sub(InitialSupply, tokens(1000)), ownerAtSnap)

	want := new(big.Int).Mul(XmasAirdropAmount.ToBig(), tokens(1000).ToBig())
	want.Div(want, InitialSupply.ToBig())

	ent, err := tok.Entitlement(user1, 1)
	require.NoError(t, err)
	assert.Equal(t, want.String(), ent.Dec())

	twelfth := new(uint256.Int).Div(ent, uint256.NewInt(12))

	claimable, err := tok.ClaimableAmount(user1, xmas2021)
	require.NoError(t, err)
	assert.Equal(t, twelfth, claimable)
	assert.Len(t, tok.VestedSchedule(user1, xmas2021), 11)

	end := xmas2021 + 11*MonthSeconds
	claimable, err = tok.ClaimableAmount(user1, end)
	require.NoError(t, err)
	assert.Equal(t, ent, claimable)
	assert.Empty(t, tok.VestedSchedule(user1, end))

	_, err = tok.Entitlement(user1, 7)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSnapshot)
}

func TestClaim_Twice(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(1000))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	require.NoError(t, err)

	now := xmas2021 + 3*MonthSeconds
	before := tok.BalanceOf(user1)
	supply := tok.TotalSupply()

	receipt, err := tok.Claim(now, user1)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, types.EventTransfer, receipt.Events[0].Kind)
	assert.Equal(t, common.Address{}, *receipt.Events[0].From)
	assert.Equal(t, 4, tok.ClaimedTwelfths(user1, 1))

	ent, err := tok.Entitlement(user1, 1)
	require.NoError(t, err)
	assert.Equal(t, portion(ent, 4), receipt.Amount)

	after := tok.BalanceOf(user1)
	assert.Equal(t, new(uint256.Int).Add(before, receipt.Amount), after)
	assert.Equal(t, new(uint256.Int).Add(supply, receipt.Amount), tok.TotalSupply())

	_, err = tok.Claim(now, user1)
	assert.ErrorIs(t, err, apperrors.ErrNothingToClaim)
	assert.Equal(t, after, tok.BalanceOf(user1))
}

func TestClaim_PartialClaimsSumToEntitlement(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(777))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	require.NoError(t, err)

	ent, err := tok.Entitlement(user1, 1)
	require.NoError(t, err)

	total := new(uint256.Int)
	for _, month := range []int64{0, 1, 5, 6, 11} {
		receipt, err := tok.Claim(xmas2021+month*MonthSeconds, user1)
		require.NoError(t, err)
		total.Add(total, receipt.Amount)
	}
	assert.Equal(t, ent, total)
	assert.Equal(t, UnlockSlots, tok.ClaimedTwelfths(user1, 1))
}

func TestClaimableQuote(t *testing.T) {
	tok := newTestToken(t)

	q, err := tok.ClaimableQuote(user1, deployTime)
	require.NoError(t, err)
	assert.True(t, q.Amount.IsZero())
	assert.Zero(t, q.ValidUntil)

	_, err = tok.Transfer(deployTime, owner, user1, tokens(1000))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	require.NoError(t, err)

	now := xmas2021 + MonthSeconds - 1
	q, err = tok.ClaimableQuote(user1, now)
	require.NoError(t, err)
	amount, err := tok.ClaimableAmount(user1, now)
	require.NoError(t, err)
	assert.Equal(t, amount, q.Amount)
	assert.Equal(t, xmas2021+MonthSeconds, q.ValidUntil)
	assert.False(t, q.Expired(now))
	assert.True(t, q.Expired(q.ValidUntil))
	assert.Equal(t, types.ClaimableVersion{Account: user1, Distributions: 1}, q.ClaimableVersion)

	// user2 held nothing at the snapshot, no unlock bounds its quote
	q, err = tok.ClaimableQuote(user2, now)
	require.NoError(t, err)
	assert.Zero(t, q.ValidUntil)

	_, err = tok.Claim(now, user1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tok.ClaimVersion(user1).Claims)
	assert.Equal(t, uint64(0), tok.ClaimVersion(user2).Claims)

	q, err = tok.ClaimableQuote(user1, xmas2021+11*MonthSeconds)
	require.NoError(t, err)
	assert.Zero(t, q.ValidUntil)
}

func TestNextUnlock(t *testing.T) {
	rec := AirdropRecord{Time: xmas2021}

	assert.Equal(t, xmas2021, NextUnlock(rec, xmas2021-1))
	assert.Equal(t, xmas2021+MonthSeconds, NextUnlock(rec, xmas2021))
	assert.Equal(t, xmas2021+2*MonthSeconds, NextUnlock(rec, xmas2021+MonthSeconds))
	assert.Equal(t, xmas2021+11*MonthSeconds, NextUnlock(rec, xmas2021+11*MonthSeconds-1))
	assert.Zero(t, NextUnlock(rec, xmas2021+11*MonthSeconds))
}

func TestClaim_NothingBeforeDistribution(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Claim(xmas2021, owner)
	assert.ErrorIs(t, err, apperrors.ErrNothingToClaim)
	assert.Equal(t, 0, tok.DistributionCount())
}

func TestClaim_MintCrossingBoundarySnapshotsPreMintBalance(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(1000))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	require.NoError(t, err)

	xmas2022 := XmasTime(2022)
	before := tok.BalanceOf(user1)

	receipt, err := tok.Claim(xmas2022, user1)
	require.NoError(t, err)
	assert.Equal(t, []types.EventKind{
		types.EventSnapshot,
		types.EventXmasAirdrop,
		types.EventTransfer,
	}, kinds(receipt.Events))

	// only the 2021 distribution is settled
	ent, err := tok.Entitlement(user1, 1)
	require.NoError(t, err)
	assert.Equal(t, ent, receipt.Amount)
	assert.Equal(t, 0, tok.ClaimedTwelfths(user1, 2))

	bal, err := tok.BalanceOfAt(user1, 2)
	require.NoError(t, err)
	assert.Equal(t, before, bal)
}

func TestPause(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(1000))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	require.NoError(t, err)

	_, err = tok.Pause(xmas2021, user1)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	receipt, err := tok.Pause(xmas2021, owner)
	require.NoError(t, err)
	assert.Equal(t, types.EventPaused, receipt.Events[0].Kind)
	assert.True(t, tok.Paused())

	_, err = tok.Pause(xmas2021, owner)
	assert.ErrorIs(t, err, apperrors.ErrPaused)

	_, err = tok.Transfer(xmas2021, user1, user2, tokens(1))
	assert.ErrorIs(t, err, apperrors.ErrPaused)
	assert.Equal(t, "ERC20Pausable: token transfer while paused", apperrors.Categorize(err).Message)

	_, err = tok.Transfer(xmas2021, owner, user2, tokens(1))
	assert.ErrorIs(t, err, apperrors.ErrPaused)

	_, err = tok.Claim(xmas2021, user1)
	assert.ErrorIs(t, err, apperrors.ErrPaused)
	assert.Equal(t, "Pausable: paused", apperrors.Categorize(err).Message)

	// approvals are not paused
	_, err = tok.Approve(xmas2021, user1, user2, tokens(1))
	require.NoError(t, err)

	receipt, err = tok.Unpause(xmas2021, owner)
	require.NoError(t, err)
	assert.Equal(t, types.EventUnpaused, receipt.Events[0].Kind)

	_, err = tok.Unpause(xmas2021, owner)
	assert.ErrorIs(t, err, apperrors.ErrNotPaused)

	_, err = tok.Transfer(xmas2021, user1, user2, tokens(1))
	require.NoError(t, err)
	_, err = tok.Claim(xmas2021, user1)
	require.NoError(t, err)
}

func TestOwnership(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.TransferOwnership(deployTime, user1, user2)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = tok.TransferOwnership(deployTime, owner, common.Address{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidOwner)

	receipt, err := tok.TransferOwnership(deployTime, owner, user1)
	require.NoError(t, err)
	assert.Equal(t, owner, *receipt.Events[0].From)
	assert.Equal(t, user1, *receipt.Events[0].To)
	assert.Equal(t, user1, tok.Owner())

	_, err = tok.Pause(deployTime, owner)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = tok.RenounceOwnership(deployTime, user1)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, tok.Owner())

	// nobody can act as owner after renouncement, not even the zero address
	_, err = tok.Pause(deployTime, common.Address{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = tok.TransferOwnership(deployTime, user1, owner)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCatchUp_FiveYearGap(t *testing.T) {
	tok := newTestToken(t)

	now := XmasTime(2025) + 100
	receipt, err := tok.Transfer(now, owner, user1, tokens(1))
	require.NoError(t, err)
	assert.Equal(t, 5, receipt.Distributions)

	var ids []uint64
	var years []int
	for _, e := range receipt.Events {
		switch e.Kind {
		case types.EventSnapshot:
			ids = append(ids, e.SnapshotID)
		case types.EventXmasAirdrop:
			years = append(years, e.Year)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids)
	assert.Equal(t, []int{2021, 2022, 2023, 2024, 2025}, years)

	// 2024 is a leap year
	assert.Equal(t, 2026, tok.NextDistributionYear())
	assert.Equal(t, xmas2021+(5*365+1)*daySeconds, tok.NextDistributionTime())
	assert.Equal(t, XmasTime(2026), tok.NextDistributionTime())

	for i, rec := range tok.Airdrops() {
		assert.Equal(t, XmasTime(2021+i), rec.Time)
		assert.Equal(t, InitialSupply, rec.TotalSupply)
	}

	// a second call at the same instant is a no-op for the schedule
	receipt, err = tok.Transfer(now, owner, user1, tokens(1))
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.Distributions)
	assert.Equal(t, 5, tok.DistributionCount())
}

func TestCatchUp_Cap(t *testing.T) {
	tok, _, err := New(Config{
		Deployer:          owner,
		DeployTime:        deployTime,
		ReferenceEpoch:    time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxCatchUpPerCall: 2,
	})
	require.NoError(t, err)

	now := XmasTime(2025) + 100
	for _, want := range []int{2, 4, 5, 5} {
		_, err := tok.Transfer(now, owner, user1, tokens(1))
		require.NoError(t, err)
		assert.Equal(t, want, tok.DistributionCount())
	}
}

func TestSnapshot_ImmutableAfterLaterChanges(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(100))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021, user1, user2, tokens(40))
	require.NoError(t, err)
	_, err = tok.Transfer(xmas2021+1, user1, user2, tokens(10))
	require.NoError(t, err)
	_, err = tok.Claim(xmas2021+MonthSeconds, user1)
	require.NoError(t, err)

	bal, err := tok.BalanceOfAt(user1, 1)
	require.NoError(t, err)
	assert.Equal(t, tokens(100), bal)
	bal, err = tok.BalanceOfAt(user2, 1)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	supply, err := tok.TotalSupplyAt(1)
	require.NoError(t, err)
	assert.Equal(t, InitialSupply, supply)
	assert.True(t, tok.TotalSupply().Gt(InitialSupply))

	_, err = tok.TotalSupplyAt(0)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSnapshot)
	_, err = tok.BalanceOfAt(user1, 2)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSnapshot)
}

func TestAccounts(t *testing.T) {
	tok := newTestToken(t)

	_, err := tok.Transfer(deployTime, owner, user1, tokens(1))
	require.NoError(t, err)

	accts := tok.Accounts()
	assert.ElementsMatch(t, []common.Address{owner, user1}, accts)
}
