package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rudolf-ledger/internal/errors"
)

func TestSnapshotStore_SparseHistory(t *testing.T) {
	s := NewSnapshotStore()

	// changes before the first snapshot are not versioned
	s.BeforeAccountChange(user1, uint256.NewInt(5))
	assert.Empty(t, s.accounts)

	require.Equal(t, uint64(1), s.Create())
	require.Equal(t, uint64(2), s.Create())

	// balance 10 held during snapshots 1 and 2, changed once after
	s.BeforeAccountChange(user1, uint256.NewInt(10))
	s.BeforeAccountChange(user1, uint256.NewInt(11))

	require.Equal(t, uint64(3), s.Create())
	s.BeforeAccountChange(user1, uint256.NewInt(12))

	current := uint256.NewInt(13)
	for id, want := range map[uint64]uint64{1: 10, 2: 10, 3: 12} {
		got, err := s.BalanceAt(id, user1, current)
		require.NoError(t, err)
		assert.Equal(t, want, got.Uint64(), "snapshot %d", id)
	}

	// untouched accounts fall back to the live value
	got, err := s.BalanceAt(1, user2, uint256.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Uint64())
}

func TestSnapshotStore_UnknownID(t *testing.T) {
	s := NewSnapshotStore()

	_, err := s.TotalSupplyAt(1, new(uint256.Int))
	assert.ErrorIs(t, err, apperrors.ErrUnknownSnapshot)

	s.Create()
	_, err = s.TotalSupplyAt(0, new(uint256.Int))
	assert.ErrorIs(t, err, apperrors.ErrUnknownSnapshot)
	_, err = s.BalanceAt(2, user1, new(uint256.Int))
	assert.ErrorIs(t, err, apperrors.ErrUnknownSnapshot)
}

func TestSnapshotStore_ReturnsCopies(t *testing.T) {
	s := NewSnapshotStore()
	s.Create()
	s.BeforeSupplyChange(uint256.NewInt(100))

	v, err := s.TotalSupplyAt(1, uint256.NewInt(200))
	require.NoError(t, err)
	v.SetUint64(0)

	v, err = s.TotalSupplyAt(1, uint256.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v.Uint64())
}
