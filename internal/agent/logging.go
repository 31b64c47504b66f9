package agent

import (
	"fmt"
	"log"

	"github.com/andywolf/concierge/internal/cloud/gcp"
)

// logInfo logs at INFO level to both local logger and cloud logger. rc may
// be nil outside a request.
func (a *Agent) logInfo(rc *runContext, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.logger.Printf("%s", msg)
	if a.cloudLogger != nil {
		a.cloudLogger.Log(gcp.SeverityInfo, msg, rc.logFields())
	}
}

// logWarning logs at WARNING level to both local logger and cloud logger
func (a *Agent) logWarning(rc *runContext, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.logger.Printf("Warning: %s", msg)
	if a.cloudLogger != nil {
		a.cloudLogger.Log(gcp.SeverityWarning, msg, rc.logFields())
	}
}

// logFields tags an entry with the request's own session and phase. The
// cloud logger is shared by concurrent requests, so these travel with each
// entry instead of being set on the logger.
func (rc *runContext) logFields() map[string]any {
	if rc == nil {
		return nil
	}
	fields := map[string]any{
		gcp.FieldSessionID: rc.sessionID,
		"request_id":       rc.requestID,
	}
	if rc.state != nil {
		fields[gcp.FieldPhase] = string(rc.state.Phase)
	}
	return fields
}

// stateLogger routes phase tracker output for rc to the structured logger
// when it can back a *log.Logger, and to the local logger otherwise.
func (a *Agent) stateLogger(rc *runContext) *log.Logger {
	if sl, ok := a.cloudLogger.(interface {
		StdLoggerWith(func() map[string]any) *log.Logger
	}); ok {
		return sl.StdLoggerWith(rc.logFields)
	}
	return a.logger
}
