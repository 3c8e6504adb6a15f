package http

import (
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
)

// HandlerMetrics wraps handlers with metrics tracking. A nil collector
// disables tracking.
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackComputerOperation tracks computer lifecycle operations
func (hm *HandlerMetrics) TrackComputerOperation(operation string) func() {
	timer := monitoring.NewTimer(hm.metrics, "computer_manager", operation)
	return func() { timer.Stop("success") }
}

// TrackNetworkOperation tracks sandbox network operations. The returned
// func takes the operation's error.
func (hm *HandlerMetrics) TrackNetworkOperation(operation string) func(error) {
	timer := monitoring.NewTimer(hm.metrics, "network", operation)
	return func(err error) {
		if err != nil {
			timer.Stop("error")
			return
		}
		timer.Stop("success")
	}
}

// Reject counts a synchronously rejected operation by error kind
func (hm *HandlerMetrics) Reject(operation string, err error) {
	if hm.metrics == nil {
		return
	}
	hm.metrics.RecordRejection(operation, neterr.KindOf(err).String())
}
