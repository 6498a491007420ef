package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-shop/internal/status"
)

// respondError renders err as {error, details} with the mapped status code.
// Unknown errors are logged and reported without details.
func respondError(e *core.RequestEvent, err error) error {
	code := status.HTTPStatus(err)
	body := map[string]any{"error": status.Message(err)}
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", e.Request.Method, "path", e.Request.URL.Path, "error", err)
	} else {
		body["details"] = err.Error()
	}
	return e.JSON(code, body)
}

func isAdmin(e *core.RequestEvent) bool {
	if e.Auth == nil {
		return false
	}
	return e.Auth.IsSuperuser() || e.Auth.Collection().Name == "admins"
}

// RequireAdmin lets through records of the admins collection and superusers.
func RequireAdmin(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	if !isAdmin(e) {
		return apis.NewForbiddenError("Admin access required", nil)
	}
	return e.Next()
}
