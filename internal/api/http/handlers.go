package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/devtools"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
)

// Discoverer finds the page the landing page should open.
type Discoverer interface {
	Discover(ctx context.Context) (devtools.Target, error)
}

// Landing serves the page that embeds the debugger frontend.
type Landing struct {
	discoverer Discoverer
	opts       devtools.RewriteOptions
	logger     *logging.Logger
}

// NewLanding creates the landing page handler.
func NewLanding(discoverer Discoverer, opts devtools.RewriteOptions, logger *logging.Logger) *Landing {
	return &Landing{
		discoverer: discoverer,
		opts:       opts,
		logger:     logger.Named("landing"),
	}
}

// DebuggerURL discovers the current page and builds its external debugger
// URL. Nothing is cached: the page can change between calls.
func (h *Landing) DebuggerURL(ctx context.Context) (string, error) {
	target, err := h.discoverer.Discover(ctx)
	if err != nil {
		return "", err
	}
	return devtools.BuildDebuggerURL(target, h.opts)
}

// Serve handles GET /. Discovery and rewrite failures are answered with a
// plain-text 500 carrying the error message.
func (h *Landing) Serve(c *gin.Context) {
	debuggerURL, err := h.DebuggerURL(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := RenderPage(debuggerURL)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (h *Landing) fail(c *gin.Context, err error) {
	h.logger.Warn("Landing page failed",
		zap.String("outcome", devtools.Classify(err)),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.String(http.StatusInternalServerError, err.Error())
}
