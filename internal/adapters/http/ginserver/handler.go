package ginserver

import (
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/services/audit"
	"github.com/vshulcz/devpoll/internal/services/devices"
)

// Handler exposes HTTP endpoints for check signals and device state inspection.
type Handler struct {
	svc *devices.Service
}

// NewHandler wires a devices service into a gin-compatible HTTP handler.
func NewHandler(svc *devices.Service) *Handler {
	return &Handler{svc: svc}
}

// Check handles `POST /api/v1/check` with a JSON signal envelope.
// The check runs in the background unless the `wait` query flag is set.
func (h *Handler) Check(c *gin.Context) {
	var env domain.SignalEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if env.Type != domain.SignalCheckDevicesState {
		httpError(c, domain.ErrUnknownSignal)
		return
	}

	ctx := audit.WithClientIP(c.Request.Context(), c.ClientIP())
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		states, err := h.svc.CheckNow(ctx)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, states)
		return
	}

	if err := h.svc.Notify(ctx, domain.CheckSignal{}); err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// ListDevices handles `GET /api/v1/devices`.
func (h *Handler) ListDevices(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetDevice handles `GET /api/v1/devices/:id`; the ID is path-escaped.
func (h *Handler) GetDevice(c *gin.Context) {
	id := c.Param("id")
	if strings.TrimSpace(id) == "" {
		c.String(http.StatusNotFound, "not found")
		return
	}
	st, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Index renders a basic HTML dashboard with the last known device states.
func (h *Handler) Index(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>devices</title>")
	sb.WriteString("<style>body{font-family:system-ui,Arial,sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:6px 10px}</style>")
	sb.WriteString("</head><body>")
	sb.WriteString("<h1>Devices</h1>")
	if last := h.svc.LastCheck(); !last.IsZero() {
		sb.WriteString("<p>Last check: ")
		sb.WriteString(last.Format(time.RFC3339))
		sb.WriteString("</p>")
	}

	sb.WriteString("<table><tr><th>ID</th><th>Kind</th><th>Status</th><th>Detail</th><th>Checked</th></tr>")
	for _, st := range list {
		sb.WriteString("<tr><td>")
		sb.WriteString(html.EscapeString(st.ID))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(string(st.Kind)))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(string(st.Status)))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(st.Detail))
		sb.WriteString("</td><td>")
		sb.WriteString(st.CheckedAt.Format(time.RFC3339))
		sb.WriteString("</td></tr>")
	}
	sb.WriteString("</table>")
	sb.WriteString("</body></html>")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sb.String()))
}

// Ping proxies `GET /ping` to the storage health check.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "db ping error: %v", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

func httpError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrNotFound):
		c.String(http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnknownSignal):
		c.String(http.StatusBadRequest, "bad request")
	case errors.Is(err, domain.ErrCheckInProgress):
		c.String(http.StatusConflict, "check in progress")
	default:
		c.String(http.StatusInternalServerError, "internal error")
	}
}
