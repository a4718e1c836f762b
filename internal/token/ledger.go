package token

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/rudolf-ledger/internal/errors"
)

// Ledger holds balances, allowances and the total supply. The sum of all
// balances equals the total supply.
type Ledger struct {
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	totalSupply *uint256.Int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		totalSupply: new(uint256.Int),
	}
}

// BalanceOf returns a copy of the account balance
func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// TotalSupply returns a copy of the total supply
func (l *Ledger) TotalSupply() *uint256.Int {
	return l.totalSupply.Clone()
}

// Allowance returns what spender may still move on behalf of owner
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a.Clone()
		}
	}
	return new(uint256.Int)
}

// Accounts returns every account that ever held a balance, sorted
func (l *Ledger) Accounts() []common.Address {
	out := make([]common.Address, 0, len(l.balances))
	for a := range l.balances {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}

func (l *Ledger) balanceRef(account common.Address) *uint256.Int {
	b, ok := l.balances[account]
	if !ok {
		b = new(uint256.Int)
		l.balances[account] = b
	}
	return b
}

// checkTransfer validates a move without mutating anything
func (l *Ledger) checkTransfer(from common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(from)
	if amount.Gt(bal) {
		return apperrors.NewInsufficientBalanceError(from.Hex(), bal.Dec(), amount.Dec())
	}
	return nil
}

// move debits from and credits to. checkTransfer must have passed.
func (l *Ledger) move(from, to common.Address, amount *uint256.Int) {
	src := l.balanceRef(from)
	src.Sub(src, amount)
	dst := l.balanceRef(to)
	dst.Add(dst, amount)
}

// checkMint validates a supply increase without mutating anything
func (l *Ledger) checkMint(amount *uint256.Int) error {
	if _, overflow := new(uint256.Int).AddOverflow(l.totalSupply, amount); overflow {
		return apperrors.NewOverflowError("mint")
	}
	return nil
}

// mint increases the balance of to and the total supply. checkMint must
// have passed; a balance cannot overflow when the supply does not.
func (l *Ledger) mint(to common.Address, amount *uint256.Int) {
	l.totalSupply.Add(l.totalSupply, amount)
	dst := l.balanceRef(to)
	dst.Add(dst, amount)
}

func (l *Ledger) setAllowance(owner, spender common.Address, amount *uint256.Int) {
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = amount.Clone()
}

// checkSpend validates an allowance debit without mutating anything
func (l *Ledger) checkSpend(owner, spender common.Address, amount *uint256.Int) error {
	current := l.Allowance(owner, spender)
	if current.Eq(maxUint256) {
		return nil
	}
	if amount.Gt(current) {
		return apperrors.NewInsufficientAllowanceError(owner.Hex(), spender.Hex(), current.Dec(), amount.Dec())
	}
	return nil
}

// spend debits an allowance. An unlimited allowance is never decreased.
func (l *Ledger) spend(owner, spender common.Address, amount *uint256.Int) {
	current := l.Allowance(owner, spender)
	if current.Eq(maxUint256) {
		return
	}
	l.setAllowance(owner, spender, current.Sub(current, amount))
}

var maxUint256 = new(uint256.Int).SetAllOne()
