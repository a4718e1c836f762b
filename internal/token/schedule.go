package token

import (
	"github.com/holiman/uint256"

	"github.com/rudolf-ledger/internal/events"
)

// AirdropRecord is one distribution event. Time is the scheduled Dec-25
// instant, not the block time of the call that crossed it.
type AirdropRecord struct {
	Year        int
	SnapshotID  uint64
	Time        int64
	TotalSupply *uint256.Int
	Amount      *uint256.Int
}

// ScheduleState is the next pending distribution boundary
type ScheduleState struct {
	NextYear int
	NextTime int64
}

// AirdropScheduler replays missed distribution boundaries lazily, in
// chronological order, whenever the ledger is about to mutate.
type AirdropScheduler struct {
	state    ScheduleState
	emission *uint256.Int
	records  []AirdropRecord
	// maxPerCall caps the boundaries processed by a single catch-up.
	// 0 processes all of them.
	maxPerCall int
}

// NewAirdropScheduler creates a scheduler whose first boundary is
// Dec-25 of firstYear.
func NewAirdropScheduler(firstYear int, emission *uint256.Int, maxPerCall int) *AirdropScheduler {
	return &AirdropScheduler{
		state:      ScheduleState{NextYear: firstYear, NextTime: XmasTime(firstYear)},
		emission:   emission.Clone(),
		maxPerCall: maxPerCall,
	}
}

// State returns the next pending boundary
func (s *AirdropScheduler) State() ScheduleState {
	return s.state
}

// Records returns the distributions created so far, oldest first
func (s *AirdropScheduler) Records() []AirdropRecord {
	return s.records
}

// Count returns the number of distributions created so far
func (s *AirdropScheduler) Count() int {
	return len(s.records)
}

// LastSnapshotID returns the snapshot id of the latest distribution, 0 if none
func (s *AirdropScheduler) LastSnapshotID() uint64 {
	if len(s.records) == 0 {
		return 0
	}
	return s.records[len(s.records)-1].SnapshotID
}

// Emission returns the fixed amount distributed per boundary
func (s *AirdropScheduler) Emission() *uint256.Int {
	return s.emission.Clone()
}

// catchUp processes every boundary at or before now (up to the per-call
// cap). For each one it takes a snapshot, records the distribution with
// the supply at that instant and advances to the following Dec-25.
// It returns the number of boundaries processed.
func (s *AirdropScheduler) catchUp(now int64, store *SnapshotStore, supply *uint256.Int, emit func(events.Event)) int {
	n := 0
	for now >= s.state.NextTime {
		if s.maxPerCall > 0 && n >= s.maxPerCall {
			break
		}

		id := store.Create()
		emit(events.NewSnapshot(now, id))

		s.records = append(s.records, AirdropRecord{
			Year:        s.state.NextYear,
			SnapshotID:  id,
			Time:        s.state.NextTime,
			TotalSupply: supply.Clone(),
			Amount:      s.emission.Clone(),
		})
		emit(events.NewXmasAirdrop(now, s.state.NextYear, s.emission, id))

		s.state.NextYear, s.state.NextTime = NextXmas(s.state.NextYear, s.state.NextTime)
		n++
	}
	return n
}
