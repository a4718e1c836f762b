package token

import (
	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/rudolf-ledger/internal/errors"
)

// Revert reasons for the two pause guards
const (
	reasonTransferPaused = "ERC20Pausable: token transfer while paused"
	reasonPaused         = "Pausable: paused"
	reasonNotPaused      = "Pausable: not paused"
)

// AccessGuard holds the single owner and the pause flag. The zero address
// as owner means ownership was renounced.
type AccessGuard struct {
	owner  common.Address
	paused bool
}

// NewAccessGuard creates a guard owned by owner
func NewAccessGuard(owner common.Address) *AccessGuard {
	return &AccessGuard{owner: owner}
}

// Owner returns the current owner, the zero address after renouncement
func (g *AccessGuard) Owner() common.Address {
	return g.owner
}

// Paused reports the pause flag
func (g *AccessGuard) Paused() bool {
	return g.paused
}

func (g *AccessGuard) onlyOwner(caller common.Address) error {
	if g.owner == (common.Address{}) || caller != g.owner {
		return apperrors.NewUnauthorizedError(caller.Hex())
	}
	return nil
}

func (g *AccessGuard) whenNotPaused(reason string) error {
	if g.paused {
		return apperrors.NewPausedError(reason)
	}
	return nil
}

// transferOwnership validates and applies an ownership change, returning
// the previous owner.
func (g *AccessGuard) transferOwnership(caller, newOwner common.Address) (common.Address, error) {
	if err := g.onlyOwner(caller); err != nil {
		return common.Address{}, err
	}
	if newOwner == (common.Address{}) {
		return common.Address{}, apperrors.NewInvalidOwnerError()
	}
	prev := g.owner
	g.owner = newOwner
	return prev, nil
}

func (g *AccessGuard) renounceOwnership(caller common.Address) (common.Address, error) {
	if err := g.onlyOwner(caller); err != nil {
		return common.Address{}, err
	}
	prev := g.owner
	g.owner = common.Address{}
	return prev, nil
}

func (g *AccessGuard) setPaused(caller common.Address, paused bool) error {
	if err := g.onlyOwner(caller); err != nil {
		return err
	}
	if paused && g.paused {
		return apperrors.NewPausedError(reasonPaused)
	}
	if !paused && !g.paused {
		return apperrors.NewNotPausedError(reasonNotPaused)
	}
	g.paused = paused
	return nil
}
