package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BridgeErrorBadInput             = "BRIDGE_BAD_INPUT"
	BridgeErrorInstallationNotFound = "BRIDGE_INSTALLATION_NOT_FOUND"
	BridgeErrorReauthRequired       = "BRIDGE_REAUTH_REQUIRED"
	BridgeErrorPermissionDenied     = "BRIDGE_PERMISSION_DENIED"
	BridgeErrorRefreshLocked        = "BRIDGE_REFRESH_LOCKED"
	BridgeErrorUpstreamFailure      = "BRIDGE_UPSTREAM_FAILURE"
	BridgeErrorRelayFailed          = "BRIDGE_RELAY_FAILED"
	BridgeErrorInternal             = "BRIDGE_INTERNAL_ERROR"
)

func bridgeErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBridgeErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "installation") && strings.Contains(msg, "not found"):
		return newBridgeError(err.Error(), goerrors.CategoryNotFound, BridgeErrorInstallationNotFound)
	case strings.Contains(msg, "invalid_grant"), strings.Contains(msg, "invalid refresh token"):
		return newBridgeError(err.Error(), goerrors.CategoryAuth, BridgeErrorReauthRequired)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newBridgeError(err.Error(), goerrors.CategoryConflict, BridgeErrorRefreshLocked)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newBridgeError(err.Error(), goerrors.CategoryBadInput, BridgeErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBridgeErrorEnvelope(mapped)
}

func newBridgeError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBridgeErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureBridgeErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = bridgeHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBridgeTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBridgeTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BridgeErrorBadInput
	case goerrors.CategoryNotFound:
		return BridgeErrorInstallationNotFound
	case goerrors.CategoryAuth:
		return BridgeErrorReauthRequired
	case goerrors.CategoryAuthz:
		return BridgeErrorPermissionDenied
	case goerrors.CategoryConflict:
		return BridgeErrorRefreshLocked
	case goerrors.CategoryExternal:
		return BridgeErrorUpstreamFailure
	case goerrors.CategoryOperation:
		return BridgeErrorRelayFailed
	default:
		return BridgeErrorInternal
	}
}

func bridgeHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsAuthError reports whether err signals an invalid or insufficient grant:
// the caller must re-authorize, not retry.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			return true
		}
		if richErr.Code == http.StatusUnauthorized || richErr.Code == http.StatusForbidden {
			return true
		}
	}
	return false
}

// IsUnauthorized reports a 401-equivalent failure from a live CRM call, the
// trigger for the single bounded reactive refresh.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code == http.StatusUnauthorized {
			return true
		}
		return richErr.Category == goerrors.CategoryAuth
	}
	return false
}

// IsNotFound reports a missing installation, contact, or conversation.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}
