package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rhuss/anreicher/pkg/api"
)

// MapHTTPError converts a backend response with a non-2xx status code into
// a backend APIError. The status code is kept in Code; the message is taken
// from the response body when it carries one.
func MapHTTPError(engine string, resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "backend resource not found"
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		}
	default:
		if message == "" {
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
	}

	e := api.NewBackendError(engine + ": " + message)
	e.Code = strconv.Itoa(resp.StatusCode)
	return e
}

// MapNetworkError converts a transport-level error into an APIError. When
// the request context is done the result is a cancellation error so callers
// can tell an aborted run from an unreachable backend.
func MapNetworkError(ctx context.Context, engine string, err error) *api.APIError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return api.NewCancelledError(fmt.Sprintf("%s request cancelled: %s", engine, err.Error())).WithCause(err)
	}
	return api.NewBackendError(fmt.Sprintf("%s connection error: %s", engine, err.Error())).WithCause(err)
}

// ExtractErrorMessage reads an error body of either shape backends use:
// {"error":"text"} (Ollama) or {"error":{"message":"text"}} (OpenAI).
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return text
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &obj); err == nil {
		return obj.Message
	}
	return ""
}
