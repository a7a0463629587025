package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/diagnosis-service/internal/middleware"
)

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Metrics(),
		middleware.Recovery(logger),
	)
	h.Register(r)
	return r
}
