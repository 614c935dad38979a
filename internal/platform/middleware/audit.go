package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
)

// AuditEntry records who touched which clinical record and how.
type AuditEntry struct {
	Timestamp  time.Time
	RequestID  string
	UserID     string
	UserRoles  []string
	Entity     string // patients, visits, admissions, ...
	EntityID   string
	Action     string // read, create, update, delete or a command such as check-in
	Method     string
	Path       string
	IPAddress  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere durable.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every /api/v1 request as an access event and hands it to the
// optional recorders. Recorder failures are logged and do not fail the request.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			entity, id, command := splitAuditPath(req.URL.Path)
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
				Entity:     entity,
				EntityID:   id,
				Action:     auditAction(req.Method, command),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				StatusCode: status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("entity", entry.Entity).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("remote_ip", entry.IPAddress).
				Msg("record_access")

			return err
		}
	}
}

// splitAuditPath breaks /api/v1/visits/<uuid>/check-in into
// ("visits", "<uuid>", "check-in"). Non-uuid second segments are treated as
// part of the command.
func splitAuditPath(path string) (entity, id, command string) {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return "unknown", "", ""
	}
	entity = segs[0]
	rest := segs[1:]
	if len(rest) > 0 {
		if _, err := uuid.Parse(rest[0]); err == nil {
			id = rest[0]
			rest = rest[1:]
		}
	}
	return entity, id, strings.Join(rest, "/")
}

func auditAction(method, command string) string {
	if method == http.MethodPost && command != "" {
		return command
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
