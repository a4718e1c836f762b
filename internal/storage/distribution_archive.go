package storage

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/token"
	"github.com/rudolf-ledger/internal/types"
)

// DistributionRow is one row of token_distributions
type DistributionRow struct {
	Year          uint16
	SnapshotID    uint64
	ScheduledTime time.Time
	BlockTime     time.Time
	Emission      *big.Int
	EventID       string
}

// TransferRow is one row of token_transfers
type TransferRow struct {
	EventID   string
	From      string
	To        string
	Amount    *big.Int
	IsMint    bool
	BlockTime time.Time
}

// DistributionArchive appends distributions and balance movements to
// ClickHouse for analytics. Rows are written in one batch per table and
// per committed call.
type DistributionArchive struct {
	db *ClickHouseDB
}

// NewDistributionArchive creates an archive on db
func NewDistributionArchive(db *ClickHouseDB) *DistributionArchive {
	return &DistributionArchive{db: db}
}

// Name implements events.Sink
func (a *DistributionArchive) Name() string { return "clickhouse_archive" }

// Handle implements events.Sink
func (a *DistributionArchive) Handle(ctx context.Context, evs []events.Event) error {
	dists, transfers, err := archiveRows(evs)
	if err != nil {
		return err
	}
	if err := a.insertDistributions(ctx, dists); err != nil {
		return err
	}
	return a.insertTransfers(ctx, transfers)
}

func (a *DistributionArchive) insertDistributions(ctx context.Context, rows []DistributionRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := a.db.Conn().PrepareBatch(ctx, `
		INSERT INTO token_distributions (
			year, snapshot_id, scheduled_time, block_time, emission, event_id
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(r.Year, r.SnapshotID, r.ScheduledTime, r.BlockTime, r.Emission, r.EventID); err != nil {
			return fmt.Errorf("failed to append distribution %d: %w", r.Year, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send distribution batch: %w", err)
	}
	return nil
}

func (a *DistributionArchive) insertTransfers(ctx context.Context, rows []TransferRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := a.db.Conn().PrepareBatch(ctx, `
		INSERT INTO token_transfers (
			event_id, from, to, amount, is_mint, block_time
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(r.EventID, r.From, r.To, r.Amount, r.IsMint, r.BlockTime); err != nil {
			return fmt.Errorf("failed to append transfer %s: %w", r.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send transfer batch: %w", err)
	}
	return nil
}

// archiveRows maps notifications onto archive rows, skipping kinds the
// archive does not keep.
func archiveRows(evs []events.Event) ([]DistributionRow, []TransferRow, error) {
	var dists []DistributionRow
	var transfers []TransferRow

	for _, e := range evs {
		switch e.Kind {
		case types.EventXmasAirdrop:
			amount, err := uint256.FromDecimal(e.Amount)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid emission in event %s: %w", e.ID, err)
			}
			dists = append(dists, DistributionRow{
				Year:          uint16(e.Year), // #nosec G115 - distribution years are four digits
				SnapshotID:    e.SnapshotID,
				ScheduledTime: time.Unix(token.XmasTime(e.Year), 0).UTC(),
				BlockTime:     time.Unix(e.BlockTime, 0).UTC(),
				Emission:      amount.ToBig(),
				EventID:       e.ID.String(),
			})
		case types.EventTransfer:
			if e.From == nil || e.To == nil {
				return nil, nil, fmt.Errorf("transfer event %s without parties", e.ID)
			}
			amount, err := uint256.FromDecimal(e.Amount)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid amount in event %s: %w", e.ID, err)
			}
			transfers = append(transfers, TransferRow{
				EventID:   e.ID.String(),
				From:      strings.ToLower(e.From.Hex()),
				To:        strings.ToLower(e.To.Hex()),
				Amount:    amount.ToBig(),
				IsMint:    e.From.Big().Sign() == 0,
				BlockTime: time.Unix(e.BlockTime, 0).UTC(),
			})
		}
	}

	return dists, transfers, nil
}
