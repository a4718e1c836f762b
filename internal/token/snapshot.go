package token

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/rudolf-ledger/internal/errors"
)

// history is the sparse version list of one value. ids is strictly
// ascending; values[i] is the value as of snapshot ids[i].
type history struct {
	ids    []uint64
	values []*uint256.Int
}

// record stores current as the value of snapshot id unless a value for
// id (or a later one) already exists.
func (h *history) record(id uint64, current *uint256.Int) {
	if n := len(h.ids); n > 0 && h.ids[n-1] >= id {
		return
	}
	h.ids = append(h.ids, id)
	h.values = append(h.values, current.Clone())
}

// at returns the value as of snapshot id, or ok=false when the value has
// not changed since that snapshot was taken.
func (h *history) at(id uint64) (*uint256.Int, bool) {
	i := sort.Search(len(h.ids), func(i int) bool { return h.ids[i] >= id })
	if i == len(h.ids) {
		return nil, false
	}
	return h.values[i], true
}

// SnapshotStore is an append-only sequence of point-in-time views of every
// balance and the total supply. Nothing is copied when a snapshot is
// taken: the first mutation of a value after a snapshot writes the old
// value under that snapshot's id.
type SnapshotStore struct {
	currentID uint64
	accounts  map[common.Address]*history
	supply    history
}

// NewSnapshotStore creates an empty store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{accounts: make(map[common.Address]*history)}
}

// Create takes a new snapshot and returns its id. Ids start at 1.
func (s *SnapshotStore) Create() uint64 {
	s.currentID++
	return s.currentID
}

// CurrentID returns the id of the latest snapshot, 0 if none
func (s *SnapshotStore) CurrentID() uint64 {
	return s.currentID
}

// BeforeAccountChange must be called with the account's current balance
// before that balance is mutated.
func (s *SnapshotStore) BeforeAccountChange(account common.Address, balance *uint256.Int) {
	if s.currentID == 0 {
		return
	}
	h, ok := s.accounts[account]
	if !ok {
		h = &history{}
		s.accounts[account] = h
	}
	h.record(s.currentID, balance)
}

// BeforeSupplyChange must be called with the current total supply before
// it is mutated.
func (s *SnapshotStore) BeforeSupplyChange(supply *uint256.Int) {
	if s.currentID == 0 {
		return
	}
	s.supply.record(s.currentID, supply)
}

// BalanceAt returns the balance account held when snapshot id was taken.
// current is the account's live balance.
func (s *SnapshotStore) BalanceAt(id uint64, account common.Address, current *uint256.Int) (*uint256.Int, error) {
	if err := s.check(id); err != nil {
		return nil, err
	}
	if h, ok := s.accounts[account]; ok {
		if v, ok := h.at(id); ok {
			return v.Clone(), nil
		}
	}
	return current.Clone(), nil
}

// TotalSupplyAt returns the total supply when snapshot id was taken.
// current is the live total supply.
func (s *SnapshotStore) TotalSupplyAt(id uint64, current *uint256.Int) (*uint256.Int, error) {
	if err := s.check(id); err != nil {
		return nil, err
	}
	if v, ok := s.supply.at(id); ok {
		return v.Clone(), nil
	}
	return current.Clone(), nil
}

func (s *SnapshotStore) check(id uint64) error {
	if id == 0 || id > s.currentID {
		return apperrors.NewUnknownSnapshotError(id, s.currentID)
	}
	return nil
}
