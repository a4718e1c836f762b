// Package events defines the observable notifications of the token ledger
// and fans them out to the configured sinks.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/rudolf-ledger/internal/types"
)

// Event is one notification emitted by a committed ledger call.
//
// Field use per kind:
//   - transfer: From, To, Amount (From is the zero address for mints)
//   - approval: From (owner), To (spender), Amount
//   - snapshot: SnapshotID
//   - xmas_airdrop: Year, Amount (emission), SnapshotID
//   - ownership_transferred: From (previous), To (new)
//   - paused / unpaused: Account
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Kind       types.EventKind `json:"kind"`
	BlockTime  int64           `json:"blockTime"`
	From       *common.Address `json:"from,omitempty"`
	To         *common.Address `json:"to,omitempty"`
	Account    *common.Address `json:"account,omitempty"`
	Amount     string          `json:"amount,omitempty"`
	SnapshotID uint64          `json:"snapshotId,omitempty"`
	Year       int             `json:"year,omitempty"`
}

func newEvent(kind types.EventKind, blockTime int64) Event {
	return Event{ID: uuid.New(), Kind: kind, BlockTime: blockTime}
}

func addr(a common.Address) *common.Address {
	return &a
}

// NewTransfer creates a transfer notification
func NewTransfer(blockTime int64, from, to common.Address, amount *uint256.Int) Event {
	e := newEvent(types.EventTransfer, blockTime)
	e.From, e.To, e.Amount = addr(from), addr(to), amount.Dec()
	return e
}

// NewApproval creates an approval notification
func NewApproval(blockTime int64, owner, spender common.Address, amount *uint256.Int) Event {
	e := newEvent(types.EventApproval, blockTime)
	e.From, e.To, e.Amount = addr(owner), addr(spender), amount.Dec()
	return e
}

// NewSnapshot creates a snapshot-created notification
func NewSnapshot(blockTime int64, id uint64) Event {
	e := newEvent(types.EventSnapshot, blockTime)
	e.SnapshotID = id
	return e
}

// NewXmasAirdrop creates a distribution-occurred notification
func NewXmasAirdrop(blockTime int64, year int, emission *uint256.Int, snapshotID uint64) Event {
	e := newEvent(types.EventXmasAirdrop, blockTime)
	e.Year, e.Amount, e.SnapshotID = year, emission.Dec(), snapshotID
	return e
}

// NewOwnershipTransferred creates an ownership-changed notification
func NewOwnershipTransferred(blockTime int64, previous, next common.Address) Event {
	e := newEvent(types.EventOwnershipTransferred, blockTime)
	e.From, e.To = addr(previous), addr(next)
	return e
}

// NewPaused creates a pause-state-changed notification
func NewPaused(blockTime int64, account common.Address, paused bool) Event {
	kind := types.EventUnpaused
	if paused {
		kind = types.EventPaused
	}
	e := newEvent(kind, blockTime)
	e.Account = addr(account)
	return e
}

// Payload returns the JSON encoding of the event
func (e Event) Payload() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Kind, err)
	}
	return b, nil
}
