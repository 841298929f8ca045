// Package server exposes the daemon's control API over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/store"
	"github.com/warden-sh/warden/internal/watchdog"
)

// Router provides embeddable HTTP handlers for the single supervised
// service. Endpoints:
//
//	POST {basePath}/start
//	POST {basePath}/stop
//	POST {basePath}/restart
//	GET  {basePath}/status
//	GET  {basePath}/history?limit=N
//	GET  {basePath}/healthz
//	GET  /metrics (only when a metrics handler is set)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctrl     *controller.Controller
	wd       *watchdog.Watchdog // optional
	hist     store.Store        // optional
	metricsH http.Handler       // optional
	basePath string
}

func NewRouter(ctrl *controller.Controller, basePath string) *Router {
	return &Router{ctrl: ctrl, basePath: sanitizeBase(basePath)}
}

// SetWatchdog includes loop counters in the healthz response.
func (r *Router) SetWatchdog(wd *watchdog.Watchdog) { r.wd = wd }

// SetHistory enables the history endpoint.
func (r *Router) SetHistory(h store.Store) { r.hist = h }

// SetMetrics mounts h at GET /metrics, outside basePath. Used when no
// separate metrics listener is configured.
func (r *Router) SetMetrics(h http.Handler) { r.metricsH = h }

// Handler returns an http.Handler powered by gin that can be mounted in
// any server or mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.GET("/history", r.handleHistory)
	group.GET("/healthz", r.handleHealthz)
	if r.metricsH != nil {
		g.GET("/metrics", gin.WrapH(r.metricsH))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStart(c *gin.Context) {
	if err := r.ctrl.Start(c.Request.Context()); err != nil {
		writeLifecycleErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.ctrl.Stop(c.Request.Context()); err != nil {
		writeLifecycleErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	if err := r.ctrl.Restart(c.Request.Context()); err != nil {
		writeLifecycleErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctrl.Status())
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.hist == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "history not enabled"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := r.hist.Recent(c.Request.Context(), r.ctrl.Spec().Name, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, events)
}

type healthzResp struct {
	OK       bool            `json:"ok"`
	Running  bool            `json:"running"`
	Watchdog *watchdog.State `json:"watchdog,omitempty"`
}

// handleHealthz reports the daemon's own health; it answers 200 whether
// or not the child is up so load balancers probe the supervisor, not the
// service.
func (r *Router) handleHealthz(c *gin.Context) {
	resp := healthzResp{OK: true, Running: r.ctrl.Status().Running}
	if r.wd != nil {
		st := r.wd.Snapshot()
		resp.Watchdog = &st
	}
	writeJSON(c, http.StatusOK, resp)
}

// writeLifecycleErr maps the controller error taxonomy onto HTTP codes:
// state conflicts are 409 so the CLI can distinguish them from transport
// failures.
func writeLifecycleErr(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, controller.ErrAlreadyRunning) || errors.Is(err, controller.ErrNotRunning) {
		code = http.StatusConflict
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}
