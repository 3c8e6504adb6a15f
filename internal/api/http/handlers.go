package http

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/domain/computer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

// Handlers contains the debug server's HTTP handlers
type Handlers struct {
	manager *computer.Manager
	metrics *HandlerMetrics
	logger  *zap.Logger

	mu      sync.Mutex
	cursors map[string]*socketCursor // Protected by mu, keyed by computer and handle
}

// NewHandlers creates a new handlers instance
func NewHandlers(manager *computer.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager: manager,
		metrics: NewHandlerMetrics(metrics),
		logger:  logger,
		cursors: make(map[string]*socketCursor),
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "netsandbox",
		"status":  "running",
		"version": "1.0.0",
	})
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"computers": h.manager.Count(),
	})
}

// computer resolves the :id path parameter, writing the error response when
// it fails.
func (h *Handlers) computer(c *gin.Context) (*computer.Computer, bool) {
	cid, err := id.ParseComputerID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return nil, false
	}

	comp, ok := h.manager.Get(cid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   computer.ErrNotFound.Error(),
		})
		return nil, false
	}
	return comp, true
}

// statusFor maps a sandbox error to an HTTP status.
func statusFor(err error) int {
	var nerr *neterr.Error
	if !errors.As(err, &nerr) {
		return http.StatusInternalServerError
	}
	switch nerr.Kind {
	case neterr.KindValidation:
		return http.StatusBadRequest
	case neterr.KindCapacity:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// fail writes a sandbox error and records the rejection.
func (h *Handlers) fail(c *gin.Context, operation string, err error) {
	h.metrics.Reject(operation, err)
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   neterr.Message(err),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request: " + err.Error(),
	})
}

func cursorKey(cid id.ComputerID, handle string) string {
	return cid.String() + "/" + handle
}

// forget drops the receive cursors of a computer.
func (h *Handlers) forget(cid id.ComputerID) {
	prefix := cid.String() + "/"
	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range h.cursors {
		if strings.HasPrefix(key, prefix) {
			delete(h.cursors, key)
		}
	}
}
