package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	settingssvc "github.com/ivankudzin/tgapp/chatguard/internal/services/settings"
	httperrors "github.com/ivankudzin/tgapp/chatguard/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeConflict(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

// writeServiceError maps settings service errors; anything unknown is a 500
// carrying fallback as its message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, settingssvc.ErrChatNotFound):
		writeNotFound(w, "CHAT_NOT_FOUND", "chat not found")
	case errors.Is(err, settingssvc.ErrChatTaken):
		writeConflict(w, "CHAT_TAKEN", "chat is bound to another tenant")
	case errors.Is(err, settingssvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

// chatIDParam accepts negative ids; supergroup ids are negative.
func chatIDParam(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "chatID"))
	if raw == "" {
		return 0, false
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chatID == 0 {
		return 0, false
	}
	return chatID, true
}
