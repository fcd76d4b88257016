package shared

import (
	"log/slog"
	"net/http"

	"reviewflow/internal/domain/audit"
)

// RecordAudit writes an audit event for a completed mutation. Failures are
// logged and never fail the request. A nil recorder disables auditing.
func RecordAudit(r *http.Request, rec audit.Recorder, requestID, actorID, action, entityType, entityID string, before, after any) {
	if rec == nil {
		return
	}
	if err := rec.Record(r.Context(), actorID, action, entityType, entityID, requestID, ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "requestId", requestID, "err", err)
	}
}
