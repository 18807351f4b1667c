package auth

import (
	"net/http"
	"strings"

	"loomdb/pkg/logger"
)

func validateUser(u string) (bool, string) {
	if u == "" {
		return false, "user required"
	}
	if len(u) > 128 {
		return false, "user too long"
	}
	if strings.Contains(u, ":") {
		return false, "user id must not contain ':'"
	}
	return true, ""
}

// ResolveUserFromRequest is the single canonical resolver handlers call
// to learn the acting user. A signature-verified user (in context) is
// authoritative; any conflicting user from header, query or body is a
// 403. Without a signature, backend/admin roles may supply the user via
// body, X-User-ID header or the user query param. Frontend callers
// require a signature. Returns (userID, 0, "") on success or
// ("", status, message) on failure.
func ResolveUserFromRequest(r *http.Request, bodyUser string) (string, int, string) {
	if id := UserIDFromContext(r.Context()); id != "" {
		if q := strings.TrimSpace(r.URL.Query().Get("user")); q != "" && q != id {
			logger.Warn("user_mismatch_signature_query", "signature", id, "query", q, "path", r.URL.Path)
			return "", http.StatusForbidden, "user mismatch between signature and query param"
		}
		if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" && h != id {
			logger.Warn("user_mismatch_signature_header", "signature", id, "header", h, "path", r.URL.Path)
			return "", http.StatusForbidden, "user mismatch between signature and header"
		}
		if bodyUser != "" && bodyUser != id {
			logger.Warn("user_mismatch_signature_body", "signature", id, "body", bodyUser, "path", r.URL.Path)
			return "", http.StatusForbidden, "user mismatch between signature and body"
		}
		return id, 0, ""
	}

	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		for _, candidate := range []string{
			bodyUser,
			strings.TrimSpace(r.Header.Get("X-User-ID")),
			strings.TrimSpace(r.URL.Query().Get("user")),
		} {
			if candidate == "" {
				continue
			}
			if ok, msg := validateUser(candidate); !ok {
				logger.Warn("invalid_backend_user", "user", candidate, "path", r.URL.Path)
				return "", http.StatusBadRequest, msg
			}
			return candidate, 0, ""
		}
		logger.Warn("backend_missing_user", "path", r.URL.Path)
		return "", http.StatusBadRequest, "user required for backend requests"
	}

	logger.Warn("missing_user_signature", "role", role, "path", r.URL.Path)
	return "", http.StatusUnauthorized, "missing or invalid user signature"
}
