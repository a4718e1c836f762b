package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/rudolf-ledger/internal/errors"
	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/types"
)

// EventRepository persists the notification journal in Postgres
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

const insertEventQuery = `
	INSERT INTO token_events (
		id, kind, block_time, from_address, to_address, account,
		amount, snapshot_id, year, payload
	)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::numeric, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING
`

// Insert appends evs in one transaction, preserving their order.
// Re-inserting an event id is a no-op.
func (r *EventRepository) Insert(ctx context.Context, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range evs {
		payload, err := e.Payload()
		if err != nil {
			return err
		}
		batch.Queue(insertEventQuery,
			e.ID.String(),
			string(e.Kind),
			e.BlockTime,
			hexOrNil(e.From),
			hexOrNil(e.To),
			hexOrNil(e.Account),
			e.Amount,
			nullUint(e.SnapshotID),
			nullInt(e.Year),
			payload,
		)
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("begin event insert", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.NewDatabaseError("insert events", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewDatabaseError("commit events", err)
	}
	return nil
}

// Name implements events.Sink
func (r *EventRepository) Name() string { return "postgres_journal" }

// Handle implements events.Sink
func (r *EventRepository) Handle(ctx context.Context, evs []events.Event) error {
	return r.Insert(ctx, evs)
}

// EventFilter narrows a journal listing. Zero values match everything.
type EventFilter struct {
	Kind    types.EventKind
	Account *common.Address
	Limit   int
	// AfterSeq returns only events inserted after this sequence number
	AfterSeq int64
}

// StoredEvent is a journal entry with its insertion sequence number
type StoredEvent struct {
	Seq   int64
	Event events.Event
}

// List returns journal entries in insertion order
func (r *EventRepository) List(ctx context.Context, f EventFilter) ([]StoredEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	add("seq > $%d", f.AfterSeq)
	if f.Kind != "" {
		if !f.Kind.IsValid() {
			return nil, fmt.Errorf("invalid event kind: %s", f.Kind)
		}
		add("kind = $%d", string(f.Kind))
	}
	if f.Account != nil {
		addr := strings.ToLower(f.Account.Hex())
		args = append(args, addr)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(from_address = $%d OR to_address = $%d OR account = $%d)", n, n, n))
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT seq, payload
		FROM token_events
		WHERE %s
		ORDER BY seq ASC
		LIMIT $%d
	`, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list events", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var e events.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %d: %w", seq, err)
		}
		out = append(out, StoredEvent{Seq: seq, Event: e})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

// Count returns the number of journal entries of kind, or of all kinds
// when kind is empty.
func (r *EventRepository) Count(ctx context.Context, kind types.EventKind) (int64, error) {
	var n int64
	var err error
	if kind == "" {
		err = r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM token_events`).Scan(&n)
	} else {
		err = r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM token_events WHERE kind = $1`, string(kind)).Scan(&n)
	}
	if err != nil {
		return 0, apperrors.NewDatabaseError("count events", err)
	}
	return n, nil
}

func hexOrNil(a *common.Address) *string {
	if a == nil {
		return nil
	}
	s := strings.ToLower(a.Hex())
	return &s
}

func nullUint(v uint64) *int64 {
	if v == 0 {
		return nil
	}
	n := int64(v) // #nosec G115 - snapshot ids are small
	return &n
}

func nullInt(v int) *int32 {
	if v == 0 {
		return nil
	}
	n := int32(v) // #nosec G115 - calendar years fit
	return &n
}
