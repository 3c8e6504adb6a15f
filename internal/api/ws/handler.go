package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/domain/computer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

const writeTimeout = 10 * time.Second

// ClientMessage is a control message sent by a stream client.
type ClientMessage struct {
	Type string `json:"type"`
}

// Handler streams a computer's queued events over a websocket.
type Handler struct {
	manager  *computer.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new event stream handler
func NewHandler(manager *computer.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins on the debug server
			},
		},
	}
}

// HandleEvents upgrades GET /computers/:id/events. The optional "event"
// query parameter is a comma separated list of event names to forward.
func (h *Handler) HandleEvents(c *gin.Context) {
	cid, err := id.ParseComputerID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	comp, ok := h.manager.Get(cid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": computer.ErrNotFound.Error()})
		return
	}

	// The cursor is taken before the upgrade so no event queued after the
	// handshake is missed.
	cursor := comp.Bridge.Cursor()
	pred := filter(c.Query("event"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("event stream upgrade failed", zap.Error(err))
		return
	}

	s := &stream{
		conn:    conn,
		connID:  uuid.NewString(),
		metrics: h.metrics,
	}
	s.logger = h.logger.With(
		zap.String("conn_id", s.connID),
		zap.String("computer_id", cid.String()),
	)
	s.serve(cursor, pred)
}

func filter(names string) event.Predicate {
	var preds []event.Predicate
	for _, name := range strings.Split(names, ",") {
		if name = strings.TrimSpace(name); name != "" {
			preds = append(preds, event.Named(name))
		}
	}
	if len(preds) == 0 {
		return event.Any
	}
	return event.Or(preds...)
}

// stream is one connected client.
type stream struct {
	conn    *websocket.Conn
	connID  string
	metrics *monitoring.Metrics
	logger  *zap.Logger

	writeMu sync.Mutex
}

func (s *stream) serve(cursor *event.Cursor, pred event.Predicate) {
	defer s.conn.Close()
	if s.metrics != nil {
		s.metrics.IncStreamConnections()
		defer s.metrics.DecStreamConnections()
	}
	s.logger.Info("event stream connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.readLoop(cancel)

	if err := s.send(systemFrame("Connected to event stream " + s.connID)); err != nil {
		return
	}

	for {
		e, err := cursor.Await(ctx, pred)
		switch {
		case errors.Is(err, event.ErrClosed):
			_ = s.send(systemFrame("computer removed"))
			s.close(websocket.CloseGoingAway, "computer removed")
			return
		case err != nil:
			s.logger.Info("event stream disconnected")
			return
		}
		if err := s.send(EncodeEvent(e)); err != nil {
			s.logger.Debug("event stream write failed", zap.Error(err))
			return
		}
	}
}

func (s *stream) readLoop(cancel context.CancelFunc) {
	defer cancel()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.record("in", "control")

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = s.send(errorFrame("invalid message"))
			continue
		}
		switch msg.Type {
		case "ping":
			_ = s.send(Frame{Type: TypePong, Timestamp: time.Now().Unix()})
		default:
			_ = s.send(errorFrame("unknown message type"))
		}
	}
}

func (s *stream) send(f Frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.record("out", f.Type)
	return nil
}

func (s *stream) close(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (s *stream) record(direction, msgType string) {
	if s.metrics != nil {
		s.metrics.RecordStreamMessage(direction, msgType)
	}
}
