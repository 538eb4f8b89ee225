package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/kairos-persistor/internal/journal"
)

// handleListJournal returns paginated command journal entries.
//
// Query parameters:
//   - action: filter by command action
//   - status: filter by outcome ("ok" or "error")
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "command journal not enabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Action: q.Get("action"),
		Status: q.Get("status"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal entries", "error", err)
		writeInternalError(w, "failed to list journal entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
