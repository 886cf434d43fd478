package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/vipclub/internal/common"
	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"github.com/dmitrijs2005/vipclub/internal/server/services"
)

const (
	msgNotAuthenticated   = "Not authenticated"
	msgInvalidToken       = "Invalid or expired token"
	msgInvalidCredentials = "Invalid credentials"
	msgUsernameTaken      = "Username already taken"
	msgCodeTaken          = "Membership code already taken"
	msgUserNotFound       = "User not found"
	msgVIPNotFound        = "VIP data not found"
	msgMembershipNotFound = "VIP membership not found"
	msgStorageDisabled    = "Object storage not configured"
	msgUnavailable        = "Service unavailable"
	msgInternal           = "Internal server error"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeServiceError maps a domain error onto a response. All four token
// rejections share one message so a client cannot tell them apart.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	switch {
	case auth.IsTokenRejection(err):
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
		writeError(w, http.StatusUnauthorized, msgInvalidToken)
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, msgUsernameTaken)
	case errors.Is(err, services.ErrMembershipCodeTaken):
		writeError(w, http.StatusBadRequest, msgCodeTaken)
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, services.ErrVIPNotFound):
		writeError(w, http.StatusNotFound, msgVIPNotFound)
	case errors.Is(err, services.ErrMembershipNotFound):
		writeError(w, http.StatusNotFound, msgMembershipNotFound)
	case errors.Is(err, services.ErrObjectStorageDisabled):
		writeError(w, http.StatusNotImplemented, msgStorageDisabled)
	case errors.Is(err, auth.ErrUnavailable), errors.Is(err, common.ErrorUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logError(r, log, "auth backend unavailable", err)
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
	default:
		logError(r, log, "request failed", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func logError(r *http.Request, log logging.Logger, msg string, err error) {
	if log == nil {
		return
	}
	log.Error(r.Context(), msg, "error", err, "request_id", requestIDFrom(r.Context()))
}
