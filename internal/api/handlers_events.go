package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rudolf-ledger/internal/events"
	"github.com/rudolf-ledger/internal/storage"
	"github.com/rudolf-ledger/internal/types"
)

// EventJournal lists persisted notifications
type EventJournal interface {
	List(ctx context.Context, f storage.EventFilter) ([]storage.StoredEvent, error)
}

// SetEventJournal enables GET /api/events
func (s *Server) SetEventJournal(j EventJournal) {
	s.journal = j
}

// JournalEntry is one persisted notification
type JournalEntry struct {
	Seq   int64        `json:"seq"`
	Event events.Event `json:"event"`
}

// JournalResponse is a page of the notification journal
type JournalResponse struct {
	Events []JournalEntry `json:"events"`
	// NextAfter is the cursor for the following page
	NextAfter int64 `json:"nextAfter"`
}

// handleGetEvents handles GET /api/events?kind=&account=&after=&limit=
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusServiceUnavailable, "JOURNAL_UNAVAILABLE", "Event journal is not configured", nil)
		return
	}

	q := r.URL.Query()
	filter := storage.EventFilter{Kind: types.EventKind(q.Get("kind"))}
	if filter.Kind != "" && !filter.Kind.IsValid() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "unknown event kind", map[string]interface{}{
			"kind": q.Get("kind"),
		})
		return
	}
	if raw := q.Get("account"); raw != "" {
		account, err := types.ParseAddress(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		filter.Account = &account
	}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || after < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "after must be a non-negative integer", nil)
			return
		}
		filter.AfterSeq = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		filter.Limit = limit
	}

	stored, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list events")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	resp := JournalResponse{Events: make([]JournalEntry, len(stored)), NextAfter: filter.AfterSeq}
	for i, e := range stored {
		resp.Events[i] = JournalEntry{Seq: e.Seq, Event: e.Event}
		resp.NextAfter = e.Seq
	}
	respondJSON(w, http.StatusOK, resp)
}
