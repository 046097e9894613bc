package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"taskflow/internal/platform/metrics"
	"taskflow/pkg/identity"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pingPeriod is how often the server pings. Pongs are not enforced.
	pingPeriod = 50 * time.Second
	// maxMessageSize caps inbound control frames.
	maxMessageSize = 8192
	// sendQueueSize is the per-session outbound buffer; a full queue drops deliveries.
	sendQueueSize = 256
)

// SessionState is the lifecycle position of a Session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Policy controls which extra projects a session may subscribe to.
type Policy int

const (
	// PolicyStrict only allows the project admitted at handshake.
	PolicyStrict Policy = iota
	// PolicyClaims also allows any project the session's claims grant.
	PolicyClaims
)

// ParsePolicy maps "claims" to PolicyClaims; anything else is strict.
func ParsePolicy(s string) Policy {
	if s == "claims" {
		return PolicyClaims
	}
	return PolicyStrict
}

// ProjectAuthorizer is the access check used for in-session subscribe requests.
type ProjectAuthorizer interface {
	HasProjectAccess(c identity.Claims, projectID string) bool
}

// Session is one admitted websocket connection.
type Session struct {
	id        string
	conn      *websocket.Conn
	admission Admission
	registry  *Registry
	authz     ProjectAuthorizer
	policy    Policy
	logger    *slog.Logger
	metrics   *metrics.Metrics

	state     atomic.Int32
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// SessionConfig carries the collaborators shared by every session.
type SessionConfig struct {
	Registry   *Registry
	Authorizer ProjectAuthorizer
	Policy     Policy
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// NewSession wraps an upgraded connection. The session starts in Connecting.
func NewSession(id string, conn *websocket.Conn, admission Admission, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		conn:      conn,
		admission: admission,
		registry:  cfg.Registry,
		authz:     cfg.Authorizer,
		policy:    cfg.Policy,
		logger: logger.With(
			"connection_id", id,
			"user_id", admission.Subject,
			"project_id", admission.ProjectID,
		),
		metrics: cfg.Metrics,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
	}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Send enqueues payload without blocking. It returns false when the session
// is not open or its queue is full.
func (s *Session) Send(payload []byte) bool {
	if s.State() != StateOpen {
		return false
	}
	select {
	case <-s.done:
		return false
	case s.send <- payload:
		return true
	default:
		s.logger.Debug("realtime send queue full, dropping delivery")
		return false
	}
}

// Run opens the session and serves it until the connection ends or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	s.open()
	go s.writePump()
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()
	s.readLoop()
	s.Close()
}

func (s *Session) open() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return
	}
	// Queue the greeting first so it precedes any relayed event.
	s.Send(encodeFrame(outboundFrame{
		Type:      FrameConnected,
		ProjectID: s.admission.ProjectID,
		UserID:    s.admission.Subject,
	}))
	s.subscribe(s.admission.ProjectID)
	if s.metrics != nil {
		s.metrics.SessionsOpened.Inc()
		s.metrics.ActiveSessions.Inc()
	}
	s.logger.Info("websocket connected",
		"client_ip", s.admission.ClientIP,
		"device", s.admission.Device,
	)
}

// Close deregisters the session and releases the connection. Only the first call has effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		prev := SessionState(s.state.Swap(int32(StateClosed)))
		close(s.done)
		s.registry.UnsubscribeAll(s)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
		if prev == StateOpen && s.metrics != nil {
			s.metrics.ActiveSessions.Dec()
		}
		s.logger.Info("websocket disconnected")
	})
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		s.handleFrame(message)
	}
}

func (s *Session) handleFrame(message []byte) {
	var in inboundFrame
	if err := json.Unmarshal(message, &in); err != nil {
		s.replyError(msgMalformed)
		return
	}

	switch in.Type {
	case FramePing:
		s.Send(encodeFrame(outboundFrame{Type: FramePong}))
	case FrameSubscribe:
		s.handleSubscribe(in.ProjectID)
	case FrameUnsubscribe:
		s.handleUnsubscribe(in.ProjectID)
	default:
		s.replyError(msgUnknownType)
	}
}

func (s *Session) handleSubscribe(projectID string) {
	if projectID == "" {
		s.replyError(msgMissingProject)
		return
	}
	if !s.maySubscribe(projectID) {
		if s.metrics != nil {
			s.metrics.SubscribeRejected.Inc()
		}
		s.logger.Info("websocket subscribe denied", "requested_project_id", projectID)
		s.replyError(msgAccessDenied)
		return
	}
	s.subscribe(projectID)
	s.Send(encodeFrame(outboundFrame{Type: FrameSubscribed, ProjectID: projectID}))
}

// handleUnsubscribe drops an extra project. The admitted project stays
// subscribed for the life of the session.
func (s *Session) handleUnsubscribe(projectID string) {
	switch projectID {
	case "":
		s.replyError(msgMissingProject)
	case s.admission.ProjectID:
		s.replyError(msgAdmittedProject)
	default:
		s.registry.Unsubscribe(projectID, s)
		s.Send(encodeFrame(outboundFrame{Type: FrameUnsubscribed, ProjectID: projectID}))
	}
}

// subscribe registers the session and undoes it if Close ran concurrently.
// Close marks the state before deregistering, so one of the two always
// observes the other.
func (s *Session) subscribe(projectID string) {
	s.registry.Subscribe(projectID, s)
	if s.State() == StateClosed {
		s.registry.UnsubscribeAll(s)
	}
}

func (s *Session) maySubscribe(projectID string) bool {
	if projectID == s.admission.ProjectID {
		return true
	}
	return s.policy == PolicyClaims && s.authz != nil &&
		s.authz.HasProjectAccess(s.admission.Claims, projectID)
}

func (s *Session) replyError(message string) {
	s.Send(encodeFrame(outboundFrame{Type: FrameError, Message: message}))
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.Close()
				return
			}
		}
	}
}
