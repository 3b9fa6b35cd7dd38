package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/domain"
	"culture-quiz-service/internal/logger"
	"culture-quiz-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// WSConfig tunes the websocket endpoint.
type WSConfig struct {
	AllowedOrigins []string
	RedactAnswers  bool
	Logger         logrus.FieldLogger
	Metrics        *metrics.Metrics
}

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	redact   bool
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func NewWSHandler(service *app.QuizService, cfg WSConfig) *WSHandler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	origins := newOriginMatcher(cfg.AllowedOrigins)
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.allows(origin)
			},
		},
		redact:  cfg.RedactAnswers,
		log:     log,
		metrics: cfg.Metrics,
	}
}

// ServeWS upgrades the request and serves the quiz protocol until the peer goes away.
func (h *WSHandler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	cl := &client{
		h:          h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
		log:        h.log.WithField("remote", c.ClientIP()),
	}

	go cl.writePump()
	cl.readPump()
	cl.detach()
	close(cl.closed)
	<-cl.writerDone
}

// client is one websocket connection. Its attachment fields are owned by the read pump.
type client struct {
	h          *WSHandler
	conn       *websocket.Conn
	send       chan []byte
	closed     chan struct{}
	writerDone chan struct{}
	log        logrus.FieldLogger

	sessionID   string
	role        domain.Role
	team        string
	cancelSub   func()
	forwardDone chan struct{}
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("ws read error")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.fail("unknown", domain.ErrMalformedMessage)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WithError(err).Debug("ws write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			// flush what is already queued, then say goodbye
			for {
				select {
				case frame := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *client) dispatch(msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	event := msg.Type
	switch event {
	case EventJoinSession:
		err = c.handleJoin(ctx, msg.Payload)
	case EventStartQuiz:
		err = c.handleStart(ctx, msg.Payload)
	case EventAnswer:
		err = c.handleAnswer(ctx, msg.Payload)
	default:
		// keep client-chosen names out of metric labels
		event = "unknown"
		err = domain.ErrMalformedMessage
	}
	if err != nil {
		c.fail(event, err)
		return
	}
	c.h.metrics.Event(event, "ok")
}

func (c *client) handleJoin(ctx context.Context, raw json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}

	if _, err := c.h.service.Join(ctx, p.SessionID, p.Role, p.TeamName); err != nil {
		return err
	}
	updates, cancel, err := c.h.service.Subscribe(ctx, p.SessionID)
	if err != nil {
		c.h.service.Leave(ctx, p.SessionID, p.Role, p.TeamName)
		return err
	}

	// The new attachment is registered before the old one is released, so a
	// reconnecting team is never seen without connections.
	c.detach()
	c.sessionID, c.role, c.team = p.SessionID, p.Role, p.TeamName
	c.cancelSub = cancel
	c.forwardDone = make(chan struct{})
	go c.forward(updates, c.forwardDone)

	c.log = c.h.log.WithFields(logrus.Fields{
		"session_id": p.SessionID,
		"role":       p.Role,
		"team":       p.TeamName,
	})
	c.log.Debug("connection attached")
	return nil
}

func (c *client) handleStart(ctx context.Context, raw json.RawMessage) error {
	var p startPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.SessionID == "" {
		p.SessionID = c.sessionID
	}
	if _, err := c.h.service.Snapshot(ctx, p.SessionID); err != nil {
		return err
	}
	if c.sessionID != p.SessionID || c.role != domain.RoleHost {
		return domain.ErrNotHost
	}
	_, err := c.h.service.Start(ctx, p.SessionID)
	return err
}

func (c *client) handleAnswer(ctx context.Context, raw json.RawMessage) error {
	var p answerPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.Choice == nil {
		return domain.ErrMalformedMessage
	}
	if c.sessionID == "" || c.role != domain.RolePlayer {
		return domain.ErrNotJoined
	}
	if p.SessionID != "" && p.SessionID != c.sessionID {
		return domain.ErrNotJoined
	}

	result, err := c.h.service.SubmitAnswer(ctx, c.sessionID, c.team, *p.Choice)
	if err != nil {
		return err
	}
	c.emit(EventAnswerResult, result)
	return nil
}

// forward relays session snapshots until the subscription closes.
func (c *client) forward(updates <-chan domain.SessionState, done chan struct{}) {
	defer close(done)
	for state := range updates {
		c.emit(EventSessionState, newSessionStateView(state, c.h.redact))
	}
}

// detach releases the current session attachment, if any.
func (c *client) detach() {
	if c.cancelSub == nil {
		return
	}
	c.cancelSub()
	<-c.forwardDone
	c.h.service.Leave(context.Background(), c.sessionID, c.role, c.team)
	c.cancelSub, c.forwardDone = nil, nil
	c.sessionID, c.role, c.team = "", "", ""
}

func (c *client) fail(event string, err error) {
	kind := app.ErrorKind(err)
	c.h.metrics.Event(event, kind)
	msg := err.Error()
	if kind == "internal" {
		c.log.WithError(err).WithField("event", event).Error("ws event failed")
		msg = "Internal error"
	} else {
		c.log.WithError(err).WithField("event", event).Debug("ws event rejected")
	}
	c.emit(EventError, errorPayload{Msg: msg})
}

// emit queues a frame, waiting for room unless the connection is going away.
// It is called from both the read pump and the forwarder.
func (c *client) emit(event string, payload any) {
	data, err := json.Marshal(outboundMessage{Type: event, Payload: payload})
	if err != nil {
		c.h.log.WithError(err).WithField("event", event).Error("marshal ws frame")
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	case <-c.writerDone:
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return domain.ErrMalformedMessage
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.ErrMalformedMessage
	}
	return nil
}
