package worker

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("OMNISUM_WORKER_DEBUG"), "1")

// debugLogger returns base when worker tracing is switched on, a no-op logger otherwise.
func debugLogger(base *zap.Logger) *zap.Logger {
	if workerDebugEnabled && base != nil {
		return base.Named("worker")
	}
	return zap.NewNop()
}
