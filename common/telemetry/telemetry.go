package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/lyzr/registry/common/logger"
)

// Telemetry holds observability components
type Telemetry struct {
	log       *logger.Logger
	pprofAddr string
	pprof     *http.Server
}

// New creates telemetry components. A zero pprofPort disables the pprof
// endpoint; duration and event recording work either way. pprof binds to
// localhost only.
func New(pprofPort int, log *logger.Logger) *Telemetry {
	t := &Telemetry{log: log}
	if pprofPort > 0 {
		t.pprofAddr = fmt.Sprintf("localhost:%d", pprofPort)
	}
	return t
}

// PprofEnabled reports whether Start serves pprof
func (t *Telemetry) PprofEnabled() bool {
	return t.pprofAddr != ""
}

// Start starts the pprof endpoint when enabled
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.PprofEnabled() {
		return nil
	}

	t.pprof = &http.Server{
		Addr:              t.pprofAddr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := t.pprof.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("pprof server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the pprof endpoint down
func (t *Telemetry) Stop(ctx context.Context) error {
	if t.pprof == nil {
		return nil
	}
	return t.pprof.Shutdown(ctx)
}

// RecordDuration records operation duration
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	duration := time.Since(start)
	t.log.Debug("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

// RecordEvent records a telemetry event
func (t *Telemetry) RecordEvent(event string, attrs map[string]any) {
	t.log.Info("telemetry_event",
		"event", event,
		"attrs", attrs,
	)
}
