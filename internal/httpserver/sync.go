package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberline/hubd/internal/outbox"
	"github.com/emberline/hubd/internal/pull"
)

// syncStateRow mirrors one row of the sync_state table for the status endpoint.
type syncStateRow struct {
	EntityType       string  `json:"entityType"`
	SinceVersion     *string `json:"sinceVersion"`
	LastPulledAt     *string `json:"lastPulledAt"`
	RecordCount      int     `json:"recordCount"`
	Status           string  `json:"status"`
	LastError        *string `json:"lastError"`
	ConsecutiveFails int     `json:"consecutiveFails"`
}

type outboxStatsResponse struct {
	ByStatus         map[string]int `json:"byStatus"`
	OldestPendingAge string         `json:"oldestPendingAge"`
}

type syncStatusResponse struct {
	SyncState []syncStateRow      `json:"syncState"`
	Outbox    outboxStatsResponse `json:"outbox"`
}

// HandleSyncStatus returns a machine-readable summary of every sync_state
// row plus outbox queue depth, for the diagnostics surface and the optional
// ops alert.
func (s *Server) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.Store.DB().QueryContext(ctx, `
		SELECT entity_type, since_version, last_pulled_at, record_count, status, last_error, consecutive_fails
		FROM sync_state ORDER BY entity_type
	`)
	if err != nil {
		s.Logger.Error("sync status: querying sync_state", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "querying sync state")
		return
	}
	defer rows.Close()

	var states []syncStateRow
	for rows.Next() {
		var row syncStateRow
		if err := rows.Scan(&row.EntityType, &row.SinceVersion, &row.LastPulledAt, &row.RecordCount, &row.Status, &row.LastError, &row.ConsecutiveFails); err != nil {
			s.Logger.Error("sync status: scanning sync_state row", "error", err)
			RespondError(w, http.StatusInternalServerError, "internal_error", "scanning sync state")
			return
		}
		states = append(states, row)
	}

	stats, err := outbox.Stats(ctx, s.Store)
	if err != nil {
		s.Logger.Error("sync status: querying outbox stats", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "querying outbox stats")
		return
	}
	byStatus := make(map[string]int, len(stats))
	for _, sc := range stats {
		byStatus[string(sc.Status)] = sc.Count
	}

	oldest, err := outbox.OldestPendingAge(ctx, s.Store)
	if err != nil {
		s.Logger.Error("sync status: querying oldest pending age", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "querying outbox age")
		return
	}

	Respond(w, http.StatusOK, syncStatusResponse{
		SyncState: states,
		Outbox: outboxStatsResponse{
			ByStatus:         byStatus,
			OldestPendingAge: oldest.String(),
		},
	})
}

// HandleSyncPull triggers one out-of-band pull cycle, reusing the exact same
// single-flight-guarded tick the ticker calls.
func (s *Server) HandleSyncPull(w http.ResponseWriter, r *http.Request) {
	n := s.PullEngine.RunCycle(r.Context())
	Respond(w, http.StatusOK, map[string]any{"recordsPulled": n})
}

// HandleSyncPush triggers one out-of-band outbox drain.
func (s *Server) HandleSyncPush(w http.ResponseWriter, r *http.Request) {
	if err := s.PushEngine.ProcessOutbox(r.Context()); err != nil {
		s.Logger.Error("manual push cycle failed", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "push cycle failed")
		return
	}
	Respond(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleResetCursor clears one entity's sync_state cursor, forcing a full
// re-pull of that entity on the next cycle.
func (s *Server) HandleResetCursor(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	if entityType == "" {
		RespondError(w, http.StatusBadRequest, "bad_request", "entityType is required")
		return
	}
	if err := pull.ResetCursor(r.Context(), s.Store, entityType); err != nil {
		s.Logger.Error("resetting cursor", "entityType", entityType, "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "resetting cursor")
		return
	}
	Respond(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleRetryDeadLetters resets DEAD_LETTER outbox rows back to PENDING,
// optionally scoped to one entity type via the `entityType` query parameter.
func (s *Server) HandleRetryDeadLetters(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entityType")
	n, err := outbox.RetryDeadLetters(r.Context(), s.Store, entityType)
	if err != nil {
		s.Logger.Error("retrying dead letters", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "retrying dead letters")
		return
	}
	Respond(w, http.StatusOK, map[string]any{"retried": n})
}
