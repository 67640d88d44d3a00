package webhooks

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

// ignored acknowledges a delivery the bridge deliberately does not act on.
// Returning 200 stops the sender from retrying.
func ignored(reason string, metadata map[string]any) core.InboundResult {
	merged := map[string]any{"reason": reason, "ignored": true}
	for key, value := range metadata {
		merged[key] = value
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   merged,
	}
}

func failure(err error) core.InboundResult {
	statusCode := http.StatusInternalServerError
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		statusCode = richErr.Code
	}
	return core.InboundResult{
		Accepted:   false,
		StatusCode: statusCode,
		Metadata:   map[string]any{"error": err.Error()},
	}
}
