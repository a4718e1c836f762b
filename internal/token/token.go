// Package token implements the Rudolf ledger: ERC20-style bookkeeping with
// a yearly Xmas airdrop that snapshots every balance on Dec-25 and vests
// each holder's pro-rata share over twelve monthly unlocks.
//
// All state is owned by a single Token. Every exported method is one
// atomic call: it either completes and returns the notifications it
// produced, or fails without changing any state. Time is always passed in
// explicitly as the unix block time of the call.
package token

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/types"
)

const (
	Name   = "Rudolf"
	Symbol = "RUDOLF"
)

var (
	// InitialSupply is minted to the deployer at construction
	InitialSupply = types.WithDecimals(4_200_000_000)
	// XmasAirdropAmount is emitted on every distribution
	XmasAirdropAmount = types.WithDecimals(1_200_000_000)
)

// Config holds construction-time parameters
type Config struct {
	Deployer common.Address
	// DeployTime is the block time of construction
	DeployTime int64
	// ReferenceEpoch selects the first distribution: the first Dec-25
	// 00:00 UTC at or after it. Zero means DeployTime.
	ReferenceEpoch time.Time
	// InitialSupply and Emission default to the package constants when nil
	InitialSupply *uint256.Int
	Emission      *uint256.Int
	// MaxCatchUpPerCall caps distributions created by one call, 0 = no cap
	MaxCatchUpPerCall int
}

// Receipt describes a committed call
type Receipt struct {
	Events []events.Event
	// Distributions is the number of boundaries crossed during the call
	Distributions int
	// Amount is the settled amount of a claim
	Amount *uint256.Int
}

// Token is the ledger engine
type Token struct {
	mu      sync.Mutex
	guard   *AccessGuard
	ledger  *Ledger
	snaps   *SnapshotStore
	sched   *AirdropScheduler
	vesting *VestingLedger
}

// New constructs the token and mints the initial supply to the deployer
func New(cfg Config) (*Token, *Receipt, error) {
	if cfg.Deployer == (common.Address{}) {
		return nil, nil, apperrors.NewInvalidOwnerError()
	}
	supply := cfg.InitialSupply
	if supply == nil {
		supply = InitialSupply
	}
	if supply.IsZero() {
		return nil, nil, apperrors.NewInvalidParameterError("initialSupply", "must be positive")
	}
	emission := cfg.Emission
	if emission == nil {
		emission = XmasAirdropAmount
	}
	epoch := cfg.ReferenceEpoch
	if epoch.IsZero() {
		epoch = time.Unix(cfg.DeployTime, 0)
	}
	firstYear, _ := FirstXmasAtOrAfter(epoch)

	t := &Token{
		guard:   NewAccessGuard(cfg.Deployer),
		ledger:  NewLedger(),
		snaps:   NewSnapshotStore(),
		sched:   NewAirdropScheduler(firstYear, emission, cfg.MaxCatchUpPerCall),
		vesting: NewVestingLedger(),
	}

	// genesis mint bypasses catch-up: no snapshot may precede the supply
	t.ledger.mint(cfg.Deployer, supply)

	return t, &Receipt{
		Events: []events.Event{
			events.NewOwnershipTransferred(cfg.DeployTime, common.Address{}, cfg.Deployer),
			events.NewTransfer(cfg.DeployTime, common.Address{}, cfg.Deployer, supply),
		},
	}, nil
}

// call collects the notifications of one atomic call
type call struct {
	now     int64
	receipt Receipt
}

func (c *call) emit(e events.Event) {
	c.receipt.Events = append(c.receipt.Events, e)
}

// beforeBalanceChange runs catch-up and versions the touched values. It is
// the hook of every balance-mutating operation, after validation.
func (t *Token) beforeBalanceChange(c *call, accounts ...common.Address) {
	c.receipt.Distributions += t.sched.catchUp(c.now, t.snaps, t.ledger.totalSupply, c.emit)
	for _, a := range accounts {
		t.snaps.BeforeAccountChange(a, t.ledger.BalanceOf(a))
	}
	t.snaps.BeforeSupplyChange(t.ledger.totalSupply)
}

// Name returns the token name
func (t *Token) Name() string { return Name }

// Symbol returns the token symbol
func (t *Token) Symbol() string { return Symbol }

// Decimals returns the decimal scale
func (t *Token) Decimals() int { return types.Decimals }

// BalanceOf returns the current balance of account
func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.BalanceOf(account)
}

// TotalSupply returns the current total supply
func (t *Token) TotalSupply() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.TotalSupply()
}

// Allowance returns the remaining allowance of spender over owner's funds
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Allowance(owner, spender)
}

// Accounts returns every account that ever held a balance
func (t *Token) Accounts() []common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Accounts()
}

// Transfer moves amount from caller to to
func (t *Token) Transfer(now int64, caller, to common.Address, amount *uint256.Int) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := &call{now: now}
	if err := t.transfer(c, caller, to, amount); err != nil {
		return nil, err
	}
	return &c.receipt, nil
}

// TransferFrom moves amount from from to to, spending caller's allowance
func (t *Token) TransferFrom(now int64, caller, from, to common.Address, amount *uint256.Int) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ledger.checkSpend(from, caller, amount); err != nil {
		return nil, err
	}
	if err := t.checkTransfer(from, to, amount); err != nil {
		return nil, err
	}

	c := &call{now: now}
	t.ledger.spend(from, caller, amount)
	if !t.ledger.Allowance(from, caller).Eq(maxUint256) {
		c.emit(events.NewApproval(now, from, caller, t.ledger.Allowance(from, caller)))
	}
	t.applyTransfer(c, from, to, amount)
	return &c.receipt, nil
}

// Approve sets the allowance of spender over caller's funds
func (t *Token) Approve(now int64, caller, spender common.Address, amount *uint256.Int) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller == (common.Address{}) {
		return nil, apperrors.NewInvalidAddressError("ERC20: approve from the zero address")
	}
	if spender == (common.Address{}) {
		return nil, apperrors.NewInvalidAddressError("ERC20: approve to the zero address")
	}
	t.ledger.setAllowance(caller, spender, amount)
	return &Receipt{Events: []events.Event{events.NewApproval(now, caller, spender, amount)}}, nil
}

func (t *Token) checkTransfer(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) {
		return apperrors.NewInvalidAddressError("ERC20: transfer from the zero address")
	}
	if to == (common.Address{}) {
		return apperrors.NewInvalidAddressError("ERC20: transfer to the zero address")
	}
	if err := t.guard.whenNotPaused(reasonTransferPaused); err != nil {
		return err
	}
	return t.ledger.checkTransfer(from, amount)
}

func (t *Token) transfer(c *call, from, to common.Address, amount *uint256.Int) error {
	if err := t.checkTransfer(from, to, amount); err != nil {
		return err
	}
	t.applyTransfer(c, from, to, amount)
	return nil
}

func (t *Token) applyTransfer(c *call, from, to common.Address, amount *uint256.Int) {
	t.beforeBalanceChange(c, from, to)
	t.ledger.move(from, to, amount)
	c.emit(events.NewTransfer(c.now, from, to, amount))
}

// mint is only reachable from claim settlement. The caller has validated
// pause state and overflow.
func (t *Token) mint(c *call, to common.Address, amount *uint256.Int) {
	t.beforeBalanceChange(c, to)
	t.ledger.mint(to, amount)
	c.emit(events.NewTransfer(c.now, common.Address{}, to, amount))
}

// Owner returns the owner, the zero address after renouncement
func (t *Token) Owner() common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.guard.Owner()
}

// Paused reports whether transfers and claims are blocked
func (t *Token) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.guard.Paused()
}

// TransferOwnership hands the owner role to newOwner
func (t *Token) TransferOwnership(now int64, caller, newOwner common.Address) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, err := t.guard.transferOwnership(caller, newOwner)
	if err != nil {
		return nil, err
	}
	return &Receipt{Events: []events.Event{events.NewOwnershipTransferred(now, prev, newOwner)}}, nil
}

// RenounceOwnership leaves the token without owner. No privileged call is
// possible afterwards.
func (t *Token) RenounceOwnership(now int64, caller common.Address) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, err := t.guard.renounceOwnership(caller)
	if err != nil {
		return nil, err
	}
	return &Receipt{Events: []events.Event{events.NewOwnershipTransferred(now, prev, common.Address{})}}, nil
}

// Pause blocks transfers and claims
func (t *Token) Pause(now int64, caller common.Address) (*Receipt, error) {
	return t.setPaused(now, caller, true)
}

// Unpause restores transfers and claims
func (t *Token) Unpause(now int64, caller common.Address) (*Receipt, error) {
	return t.setPaused(now, caller, false)
}

func (t *Token) setPaused(now int64, caller common.Address, paused bool) (*Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.guard.setPaused(caller, paused); err != nil {
		return nil, err
	}
	return &Receipt{Events: []events.Event{events.NewPaused(now, caller, paused)}}, nil
}
