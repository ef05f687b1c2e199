package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
)

// Run is the part of the coordinator the API needs.
type Run interface {
	Snapshot() coordinator.Snapshot
	Control(a control.Action) (bool, error)
}

// Handlers serves the status and control endpoints of one run.
type Handlers struct {
	run     Run
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandlers creates handlers for run.
func NewHandlers(run Run, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{run: run, metrics: metrics, logger: logger}
}

// Health reports liveness and the run phase.
func (h *Handlers) Health(c *gin.Context) {
	snap := h.run.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"run_id": snap.RunID,
		"phase":  snap.Phase,
	})
}

// Status returns the full snapshot.
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"run":     h.run.Snapshot(),
		"metrics": h.metrics.Snapshot(),
	})
}

// Metrics exposes the run's Prometheus registry.
func (h *Handlers) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
}

// Control applies /control/:action and forwards it to the workers.
func (h *Handlers) Control(c *gin.Context) {
	action, err := control.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changed, err := h.run.Control(action)
	if err != nil {
		if errors.Is(err, control.ErrUnknownAction) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// the local transition happened; some workers missed it
		h.logger.Warn("Control not delivered to every worker",
			zap.String("action", string(action)),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"action":  action,
			"changed": changed,
			"error":   err.Error(),
		})
		return
	}

	h.logger.Info("Control applied", zap.String("action", string(action)), zap.Bool("changed", changed))

	snap := h.run.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"action":      action,
		"changed":     changed,
		"paused":      snap.Paused,
		"terminating": snap.Terminating,
	})
}
