package workflow

import (
	"context"

	"courier/internal/logging"
	"courier/internal/preflight"
)

// runPreflightChecks logs endpoint and filesystem readiness. Failures are
// reported, not fatal: queued work waits in the store until the endpoint
// recovers.
func (m *Manager) runPreflightChecks(ctx context.Context) {
	if m.skipPreflight {
		return
	}
	for _, r := range preflight.RunAll(ctx, m.cfg) {
		if r.Passed {
			m.logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.WarnWithContext(m.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue; uploads retry automatically"),
			logging.String(logging.FieldImpact, "uploads may fail until resolved"),
		)
	}
}
