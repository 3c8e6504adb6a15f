package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateComputerRequest is the body of POST /computers.
type CreateComputerRequest struct {
	Label string `json:"label"`
}

// ListComputers lists all live computers
func (h *Handlers) ListComputers(c *gin.Context) {
	defer h.metrics.TrackComputerOperation("list")()

	computers := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"computers": computers,
		"count":     len(computers),
	})
}

// CreateComputer boots a new computer
func (h *Handlers) CreateComputer(c *gin.Context) {
	defer h.metrics.TrackComputerOperation("create")()

	var req CreateComputerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	comp, err := h.manager.Create(req.Label)
	if err != nil {
		h.logger.Error("failed to create computer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"computer": comp.Info(),
	})
}

// GetComputer returns one computer with its live resource counts
func (h *Handlers) GetComputer(c *gin.Context) {
	comp, ok := h.computer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"computer": comp.Info(),
	})
}

// DeleteComputer shuts a computer down, closing its connections
func (h *Handlers) DeleteComputer(c *gin.Context) {
	defer h.metrics.TrackComputerOperation("delete")()

	comp, ok := h.computer(c)
	if !ok {
		return
	}
	h.manager.Remove(comp.ID)
	h.forget(comp.ID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Computer removed",
	})
}
