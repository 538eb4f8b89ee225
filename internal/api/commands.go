package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/kairos-persistor/internal/persistor"
)

// handleCommand accepts one command envelope over HTTP and answers with the
// same reply body a bus client would receive.
//
// A request without request_id takes the X-Request-ID of the HTTP request.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "failed to read request body")
		return
	}

	cmd, err := persistor.ParseCommand(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, persistor.Result{
			Status:  persistor.StatusError,
			Kind:    persistor.KindInvalidEnvelope,
			Message: err.Error(),
		})
		return
	}

	if cmd.RequestID == "" {
		cmd.RequestID = requestIDFrom(r.Context())
	}

	result := s.dispatcher.Dispatch(r.Context(), cmd)

	fields := result.Fields()
	fields["request_id"] = cmd.RequestID
	writeJSON(w, commandStatus(result), fields)
}

// commandStatus maps a command outcome onto an HTTP status code.
func commandStatus(result persistor.Result) int {
	if result.OK() {
		return http.StatusOK
	}

	switch result.Kind {
	case persistor.KindBackendUnreachable:
		return http.StatusServiceUnavailable
	case persistor.KindBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
