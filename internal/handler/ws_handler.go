package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/middleware"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/response"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	ws "github.com/Abhiram-745/revision-genius-bot-sub002/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// JobWatcher is the part of service.JobService the stream needs.
type JobWatcher interface {
	Get(ctx context.Context, id uuid.UUID, userID string) (*model.GenerationJob, error)
	Subscribe(ctx context.Context, id uuid.UUID) *redis.PubSub
}

// WSHandler streams generation job progress.
type WSHandler struct {
	jobs     JobWatcher
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(jobs JobWatcher, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		jobs:     jobs,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// lockedConn serialises data frames; gorilla allows one concurrent writer.
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedConn) write(v interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ws.WriteTyped(l.conn, v)
}

// JobStream godoc
// WS /ws/v1/timetables/jobs/:id/stream?token=
// Relays job events until the job finishes or the client leaves.
func (h *WSHandler) JobStream(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to load job")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := &lockedConn{conn: raw}

	wsLog := h.log.With().Str("user_id", userID).Str("job_id", jobID.String()).Logger()
	wsLog.Debug().Msg("Client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the snapshot so no transition is missed in between.
	sub := h.jobs.Subscribe(ctx, jobID)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		return
	}

	// Re-read after subscribing in case the job moved on meanwhile.
	if fresh, err := h.jobs.Get(ctx, jobID, userID); err == nil {
		job = fresh
	}
	if err := conn.write(ws.SnapshotResponse{Event: ws.EventSnapshot, Job: *job}); err != nil {
		return
	}
	if job.Status.Finished() {
		h.closeNormal(raw)
		return
	}

	go h.readLoop(ctx, cancel, conn, wsLog)

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()
	events := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := ws.WritePing(raw); err != nil {
				return
			}

		case msg, ok := <-events:
			if !ok {
				return
			}
			var event model.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				wsLog.Warn().Err(err).Msg("Bad job event payload")
				continue
			}
			if err := conn.write(ws.ProgressResponse{Event: ws.EventProgress, Data: event}); err != nil {
				return
			}
			if event.Status.Finished() {
				wsLog.Debug().Str("status", string(event.Status)).Msg("Job finished, closing stream")
				h.closeNormal(raw)
				return
			}
		}
	}
}

// readLoop answers pings and cancels the stream when the client goes away.
func (h *WSHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *lockedConn, log zerolog.Logger) {
	defer cancel()
	ws.KeepAlive(conn.conn)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn.conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			_ = conn.write(ws.PongResponse{Event: ws.EventPong})
		default:
			_ = conn.write(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

func (h *WSHandler) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
