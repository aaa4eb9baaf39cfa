package ginserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/services/logbook"
	"github.com/vshulcz/Clashpulse/internal/services/rates"
	"github.com/vshulcz/Clashpulse/internal/services/stream"
)

// Streams is satisfied by *stream.Registry.
type Streams interface {
	Subscribe(topic domain.Topic, target domain.Target) error
	Unsubscribe(topic domain.Topic) error
	UnsubscribeAll()
	Stats(topic domain.Topic) (stream.Stats, error)
	AllStats() []stream.Stats
}

// Rates is satisfied by *rates.Engine.
type Rates interface {
	Snapshot(topic domain.Topic) (rates.Snapshot, bool)
	Snapshots() []rates.Snapshot
}

// Connections is satisfied by *rates.ConnTracker.
type Connections interface {
	List(order rates.SortOrder) []rates.ConnRate
}

// ConnectionCloser is satisfied by *restapi.Client.
type ConnectionCloser interface {
	CloseConnection(ctx context.Context, id string) error
	CloseAllConnections(ctx context.Context) error
}

// Logs is satisfied by *logbook.Book.
type Logs interface {
	Lines(q logbook.Query) []domain.LogLine
	Pause()
	Resume()
	Paused() bool
	Clear()
}

// Backends is satisfied by *backend.Service.
type Backends interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]domain.Backend, error)
	Active(ctx context.Context) (domain.Backend, error)
	Add(ctx context.Context, label string, target domain.Target) (domain.Backend, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
	Test(ctx context.Context, target domain.Target) (string, error)
	Subscribe(ctx context.Context, topic domain.Topic) error
	Unsubscribe(topic domain.Topic) error
}

// Deps groups the services behind the API. Nil members disable their routes'
// data and answer 503.
type Deps struct {
	Streams     Streams
	Rates       Rates
	Connections Connections
	Closer      ConnectionCloser
	Logs        Logs
	Backends    Backends
}

// Handler exposes the dashboard's local JSON API.
type Handler struct {
	d Deps
}

func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

// Ping answers ok. With a database-backed profile store, a failed
// database ping is reported as 500.
func (h *Handler) Ping(c *gin.Context) {
	if h.d.Backends != nil && c.Query("db") != "" {
		if err := h.d.Backends.Ping(c.Request.Context()); err != nil {
			c.String(http.StatusInternalServerError, "db ping error: %v", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

// ListSubscriptions handles `GET /subscriptions`.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	if h.d.Streams == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, h.d.Streams.AllStats())
}

// Subscribe handles `PUT /subscriptions/:topic` against the active backend.
func (h *Handler) Subscribe(c *gin.Context) {
	if h.d.Streams == nil || h.d.Backends == nil {
		unavailable(c)
		return
	}
	topic, err := domain.ParseTopic(c.Param("topic"))
	if err != nil {
		httpError(c, err)
		return
	}
	if err := h.d.Backends.Subscribe(c.Request.Context(), topic); err != nil {
		httpError(c, err)
		return
	}
	st, err := h.d.Streams.Stats(topic)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, st)
}

// Unsubscribe handles `DELETE /subscriptions/:topic`. The topic is also
// dropped from the set a backend switch resubscribes.
func (h *Handler) Unsubscribe(c *gin.Context) {
	if h.d.Backends == nil {
		unavailable(c)
		return
	}
	topic, err := domain.ParseTopic(c.Param("topic"))
	if err != nil {
		httpError(c, err)
		return
	}
	if err := h.d.Backends.Unsubscribe(topic); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnsubscribeAll handles `DELETE /subscriptions`.
func (h *Handler) UnsubscribeAll(c *gin.Context) {
	if h.d.Streams == nil {
		unavailable(c)
		return
	}
	h.d.Streams.UnsubscribeAll()
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListRates(c *gin.Context) {
	if h.d.Rates == nil {
		unavailable(c)
		return
	}
	c.JSON(http.StatusOK, h.d.Rates.Snapshots())
}

func (h *Handler) GetRates(c *gin.Context) {
	if h.d.Rates == nil {
		unavailable(c)
		return
	}
	topic, err := domain.ParseTopic(c.Param("topic"))
	if err != nil {
		httpError(c, err)
		return
	}
	snap, ok := h.d.Rates.Snapshot(topic)
	if !ok {
		httpError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ListConnections handles `GET /connections?sort=speed|traffic|time|host`.
func (h *Handler) ListConnections(c *gin.Context) {
	if h.d.Connections == nil {
		unavailable(c)
		return
	}
	order, err := rates.ParseSortOrder(c.Query("sort"))
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	list := h.d.Connections.List(order)
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		filtered := list[:0]
		for _, cr := range list {
			if strings.Contains(strings.ToLower(cr.Metadata.DisplayHost()), q) ||
				strings.Contains(strings.ToLower(cr.Rule), q) {
				filtered = append(filtered, cr)
			}
		}
		list = filtered
	}
	c.JSON(http.StatusOK, list)
}

// CloseConnection handles `DELETE /connections/:id`.
func (h *Handler) CloseConnection(c *gin.Context) {
	if h.d.Closer == nil {
		unavailable(c)
		return
	}
	if err := h.d.Closer.CloseConnection(c.Request.Context(), c.Param("id")); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CloseAllConnections handles `DELETE /connections`.
func (h *Handler) CloseAllConnections(c *gin.Context) {
	if h.d.Closer == nil {
		unavailable(c)
		return
	}
	if err := h.d.Closer.CloseAllConnections(c.Request.Context()); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type logLineResponse struct {
	Time    time.Time       `json:"time"`
	Level   domain.LogLevel `json:"level"`
	Message string          `json:"message"`
}

// ListLogs handles `GET /logs?level=warning,error&q=&limit=`.
func (h *Handler) ListLogs(c *gin.Context) {
	if h.d.Logs == nil {
		unavailable(c)
		return
	}
	var q logbook.Query
	if raw := strings.TrimSpace(c.Query("level")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			lvl, err := domain.ParseLogLevel(part)
			if err != nil {
				c.String(http.StatusBadRequest, "bad request")
				return
			}
			q.Levels = append(q.Levels, lvl)
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.String(http.StatusBadRequest, "bad request")
			return
		}
		q.Limit = n
	}
	q.Search = c.Query("q")

	lines := h.d.Logs.Lines(q)
	out := make([]logLineResponse, len(lines))
	for i, l := range lines {
		out[i] = logLineResponse{Time: l.At, Level: l.Level, Message: l.Message}
	}
	c.JSON(http.StatusOK, gin.H{"paused": h.d.Logs.Paused(), "lines": out})
}

// ControlLogs handles `POST /logs/pause`, `POST /logs/resume` and `DELETE /logs`.
func (h *Handler) ControlLogs(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.d.Logs == nil {
			unavailable(c)
			return
		}
		switch action {
		case "pause":
			h.d.Logs.Pause()
		case "resume":
			h.d.Logs.Resume()
		case "clear":
			h.d.Logs.Clear()
		}
		c.Status(http.StatusNoContent)
	}
}

type backendRequest struct {
	Label   string `json:"label"`
	Address string `json:"address"`
	Secret  string `json:"secret"`
}

func (r backendRequest) target() (domain.Target, error) {
	return domain.ParseTarget(r.Address, r.Secret)
}

type backendResponse struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	HasSecret bool      `json:"hasSecret"`
}

func toBackendResponse(b domain.Backend) backendResponse {
	return backendResponse{
		CreatedAt: b.CreatedAt,
		ID:        b.ID,
		Label:     b.Label,
		Address:   b.Target.String(),
		Active:    b.Active,
		HasSecret: b.Target.Secret != "",
	}
}

// ListBackends handles `GET /backends`. Secrets are never returned.
func (h *Handler) ListBackends(c *gin.Context) {
	if h.d.Backends == nil {
		unavailable(c)
		return
	}
	list, err := h.d.Backends.List(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	out := make([]backendResponse, len(list))
	for i, b := range list {
		out[i] = toBackendResponse(b)
	}
	c.JSON(http.StatusOK, out)
}

// AddBackend handles `POST /backends`.
func (h *Handler) AddBackend(c *gin.Context) {
	if h.d.Backends == nil {
		unavailable(c)
		return
	}
	var req backendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	target, err := req.target()
	if err != nil {
		httpError(c, err)
		return
	}
	b, err := h.d.Backends.Add(c.Request.Context(), req.Label, target)
	if err != nil && b.ID == uuid.Nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBackendResponse(b))
}

// TestBackend handles `POST /backends/test` and reports the daemon version.
func (h *Handler) TestBackend(c *gin.Context) {
	if h.d.Backends == nil {
		unavailable(c)
		return
	}
	var req backendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	target, err := req.target()
	if err != nil {
		httpError(c, err)
		return
	}
	version, err := h.d.Backends.Test(c.Request.Context(), target)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": version})
}

// RemoveBackend handles `DELETE /backends/:id`.
func (h *Handler) RemoveBackend(c *gin.Context) {
	if h.d.Backends == nil {
		unavailable(c)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if err := h.d.Backends.Remove(c.Request.Context(), id); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateBackend handles `POST /backends/:id/activate`.
func (h *Handler) ActivateBackend(c *gin.Context) {
	if h.d.Backends == nil {
		unavailable(c)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if err := h.d.Backends.Activate(c.Request.Context(), id); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func unavailable(c *gin.Context) {
	c.String(http.StatusServiceUnavailable, "not configured")
}

func httpError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrNotFound):
		c.String(http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTopic),
		errors.Is(err, domain.ErrNotStreamable),
		errors.Is(err, domain.ErrInvalidTarget):
		c.String(http.StatusBadRequest, "bad request: %v", err)
	case errors.Is(err, domain.ErrNoActiveBackend):
		c.String(http.StatusConflict, "no active backend")
	case errors.Is(err, stream.ErrClosed):
		c.String(http.StatusServiceUnavailable, "shutting down")
	default:
		c.String(http.StatusInternalServerError, "internal error")
	}
}
