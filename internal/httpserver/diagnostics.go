package httpserver

import (
	"net/http"

	"github.com/emberline/hubd/internal/outbox"
)

// diagnosticsResponse is the detailed observability summary: table row
// counts, outbox depth and oldest pending age, dead-letter count, and
// approximate on-disk database size.
type diagnosticsResponse struct {
	TableCounts      map[string]int `json:"tableCounts"`
	OutboxByStatus   map[string]int `json:"outboxByStatus"`
	OldestPendingAge string         `json:"oldestPendingAge"`
	DeadLetterCount  int            `json:"deadLetterCount"`
	DBFileSizeBytes  int64          `json:"dbFileSizeBytes"`
	PeerCount        int            `json:"peerCount"`
}

var diagnosticsTables = []string{
	"sales", "sale_items", "payments",
	"kitchen_orders", "kitchen_order_items",
	"categories", "products", "customers", "taxes",
}

// HandleDiagnostics returns table counts, outbox depth, dead-letter count,
// and the approximate database file size — the operator-facing view of hub
// health that `/api/sync/status` doesn't cover.
func (s *Server) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts := make(map[string]int, len(diagnosticsTables))
	for _, table := range diagnosticsTables {
		var n int
		if err := s.Store.DB().QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			s.Logger.Error("diagnostics: counting table", "table", table, "error", err)
			RespondError(w, http.StatusInternalServerError, "internal_error", "counting table rows")
			return
		}
		counts[table] = n
	}

	stats, err := outbox.Stats(ctx, s.Store)
	if err != nil {
		s.Logger.Error("diagnostics: querying outbox stats", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "querying outbox stats")
		return
	}
	byStatus := make(map[string]int, len(stats))
	deadLetters := 0
	for _, sc := range stats {
		byStatus[string(sc.Status)] = sc.Count
		if sc.Status == outbox.StatusDeadLetter {
			deadLetters = sc.Count
		}
	}

	oldest, err := outbox.OldestPendingAge(ctx, s.Store)
	if err != nil {
		s.Logger.Error("diagnostics: querying oldest pending age", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "querying outbox age")
		return
	}

	size, err := s.Store.FileSizeBytes(ctx)
	if err != nil {
		s.Logger.Error("diagnostics: querying db file size", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "querying db size")
		return
	}

	Respond(w, http.StatusOK, diagnosticsResponse{
		TableCounts:      counts,
		OutboxByStatus:   byStatus,
		OldestPendingAge: oldest.String(),
		DeadLetterCount:  deadLetters,
		DBFileSizeBytes:  size,
		PeerCount:        s.Realtime.PeerCount(),
	})
}
