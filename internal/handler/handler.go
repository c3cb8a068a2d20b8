package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/dto"
	"github.com/BarkinBalci/conversion-reporting-service/internal/reporter"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ObjectProcessor runs the reporting pipeline for one object
type ObjectProcessor interface {
	ProcessObject(ctx context.Context, ref reporter.ObjectRef) (reporter.Summary, error)
}

type Handler struct {
	store         Pinger
	processor     ObjectProcessor
	defaultBucket string
	router        *gin.Engine
	log           *zap.Logger
}

func NewHandler(store Pinger, processor ObjectProcessor, gatherer prometheus.Gatherer, defaultBucket string, log *zap.Logger) *Handler {
	h := &Handler{
		store:         store,
		processor:     processor,
		defaultBucket: defaultBucket,
		router:        gin.Default(),
		log:           log,
	}

	h.registerRoutes(gatherer)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes(gatherer prometheus.Gatherer) {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	h.router.POST("/objects/process", h.processObject)
}

// healthCheck handles GET /health
func (h *Handler) healthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// processObject handles POST /objects/process
func (h *Handler) processObject(c *gin.Context) {
	var req dto.ProcessObjectRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid process request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if req.Bucket == "" {
		req.Bucket = h.defaultBucket
	}

	summary, err := h.processor.ProcessObject(c.Request.Context(), reporter.ObjectRef{Bucket: req.Bucket, Key: req.Key})
	if err != nil {
		status, code := http.StatusInternalServerError, "internal_error"
		if errors.Is(err, reporter.ErrMalformedMessage) {
			status, code = http.StatusUnprocessableEntity, "malformed_object"
		}

		h.log.Error("Failed to process object",
			zap.Error(err),
			zap.String("bucket", req.Bucket),
			zap.String("key", req.Key))
		c.JSON(status, dto.ErrorResponse{
			Error:   code,
			Message: err.Error(),
		})
		return
	}

	h.log.Info("Object processed",
		zap.String("bucket", req.Bucket),
		zap.String("key", req.Key),
		zap.Int("reported", summary.Reported),
		zap.Int("failed", summary.Failed))

	c.JSON(http.StatusOK, dto.ProcessObjectResponse{
		Bucket:       req.Bucket,
		Key:          req.Key,
		Read:         summary.Read,
		Unsubscribed: summary.Unsubscribed,
		Duplicates:   summary.Duplicates,
		Invalid:      summary.Invalid,
		Reported:     summary.Reported,
		Failed:       summary.Failed,
	})
}
