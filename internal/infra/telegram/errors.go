package telegram

import (
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

var permissionMarkers = []string{
	"not enough rights",
	"chat_admin_required",
	"have no rights",
	"need administrator rights",
	"can't remove chat owner",
	"user is an administrator",
	"method is available only for supergroups",
}

var permanentMarkers = []string{
	"message to delete not found",
	"message can't be deleted",
	"message to reply not found",
	"chat not found",
	"user not found",
	"participant_id_invalid",
	"bot was kicked",
	"bot is not a member",
	"user is deactivated",
	"group chat was upgraded",
}

// Classify wraps a Bot API failure into *model.PlatformError. Errors that do
// not come from the API (network, timeouts) are transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var platformErr *model.PlatformError
	if errors.As(err, &platformErr) {
		return err
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return &model.PlatformError{Class: enums.ErrorClassTransient, Err: err}
	}

	out := &model.PlatformError{Class: classifyAPIError(apiErr), Err: err}
	if apiErr.ResponseParameters.RetryAfter > 0 {
		out.RetryAfter = time.Duration(apiErr.ResponseParameters.RetryAfter) * time.Second
	}
	return out
}

func classifyAPIError(apiErr tgbotapi.Error) enums.ErrorClass {
	description := strings.ToLower(apiErr.Message)

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return enums.ErrorClassTransient
	case apiErr.Code >= http.StatusInternalServerError:
		return enums.ErrorClassTransient
	case containsAny(description, permanentMarkers):
		return enums.ErrorClassPermanent
	case containsAny(description, permissionMarkers):
		return enums.ErrorClassPermission
	case apiErr.Code == http.StatusForbidden:
		return enums.ErrorClassPermission
	case apiErr.Code == http.StatusBadRequest:
		return enums.ErrorClassPermanent
	default:
		return enums.ErrorClassTransient
	}
}

func asAPIError(err error) (tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var value tgbotapi.Error
	if errors.As(err, &value) {
		return value, true
	}
	return tgbotapi.Error{}, false
}

func containsAny(value string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}
