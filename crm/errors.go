package crm

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

func apiError(operation string, statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	category := goerrors.CategoryExternal
	switch {
	case statusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case statusCode == http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case statusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case statusCode == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	case statusCode >= 400 && statusCode < 500:
		category = goerrors.CategoryBadInput
	}

	return goerrors.New(
		fmt.Sprintf("crm: %s failed with status %d: %s", operation, statusCode, message),
		category,
	).WithCode(statusCode).WithMetadata(map[string]any{
		"operation":   operation,
		"status_code": statusCode,
	})
}

func requestError(operation string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("crm: %s request failed", operation)).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{"operation": operation})
}

func decodeError(operation string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("crm: %s response decode failed", operation)).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{"operation": operation})
}
