package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/CrowderSoup/dealerdesk/board"
	"github.com/CrowderSoup/dealerdesk/crm"
	"github.com/CrowderSoup/dealerdesk/database"
	"github.com/CrowderSoup/dealerdesk/services"
	"go.uber.org/zap"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

const maxBodyBytes = 4 << 20 // fits a 2 MiB image after base64

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": "error", "error": msg})
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, board.ErrInvalidCritical),
		errors.Is(err, board.ErrInvalidColor),
		errors.Is(err, board.ErrInvalidReminder),
		errors.Is(err, board.ErrTooManyLinks),
		errors.Is(err, board.ErrHistoryRewritten),
		errors.Is(err, board.ErrEmptyMessage),
		errors.Is(err, board.ErrInvalidBoardShape),
		errors.Is(err, board.ErrInvalidLink),
		errors.Is(err, board.ErrDescriptionLength),
		errors.Is(err, board.ErrLinkIndex),
		errors.Is(err, board.ErrInvalidImage),
		errors.Is(err, crm.ErrInvalidCustomer),
		errors.Is(err, crm.ErrInvalidActivity),
		errors.Is(err, crm.ErrUnknownActivity),
		errors.Is(err, services.ErrInvalidMagicLink):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, board.ErrColumnNotFound),
		errors.Is(err, board.ErrCategoryNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrColumnLocked),
		errors.Is(err, board.ErrNothingToUndo),
		errors.Is(err, board.ErrNothingToRedo),
		errors.Is(err, database.ErrDuplicateView):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Unexpected errors are logged and
// hidden behind a generic message.
func fail(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Join(errBadRequest, err)
	}
	return id, nil
}
