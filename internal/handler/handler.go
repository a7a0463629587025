package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SyedDaiam9101/diagnosis-service/internal/service"
)

// WelcomeMessage is the banner served at the root path.
const WelcomeMessage = "Welcome to the breast cancer diagnosis API"

// maxBodyBytes bounds request bodies; a 30-feature vector is well under 4 KiB.
const maxBodyBytes = 1 << 20

// Handler exposes the inference service over HTTP.
type Handler struct {
	svc *service.Service
}

// New creates a new Handler backed by svc.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.Welcome)
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.PUT("/config", h.UpdateConfig)
	r.DELETE("/model", h.DeleteModel)
}

// Welcome serves the static banner.
func (h *Handler) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": WelcomeMessage})
}

// Health reports model load state. It always answers 200.
func (h *Handler) Health(c *gin.Context) {
	st := h.svc.Status()

	status, model := "ok", st.Model
	if !st.Operational {
		status, model = "model unavailable", "none"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"model":  model,
		"loaded": st.Operational,
	})
}

// Predict runs the request body through the inference pipeline.
func (h *Handler) Predict(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}

	pred, err := h.svc.PredictFromRequest(c.Request.Context(), raw)
	if err != nil {
		code, msg := httpError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction":    pred.Label,
		"probabilities": pred.Probabilities,
	})
}

// UpdateConfig replaces the runtime configuration blob and echoes it back.
func (h *Handler) UpdateConfig(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}

	// Any JSON value is accepted and echoed back, null and arrays included.
	var blob any
	if err := json.Unmarshal(raw, &blob); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body is not valid JSON"})
		return
	}

	stored := h.svc.UpdateConfig(blob)
	c.JSON(http.StatusOK, gin.H{
		"message":    "configuration updated",
		"new_config": stored,
	})
}

// DeleteModel unloads the model. It is idempotent.
func (h *Handler) DeleteModel(c *gin.Context) {
	h.svc.UnloadModel(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "model removed from memory"})
}

// readBody reads at most maxBodyBytes and answers 413 for anything larger.
func readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	return raw, true
}
