// Package ws is the realtime layer: the tenant session registry and the
// broadcast router. One Hub instance is the single broadcast authority
// for the process; multi-node fan-out would need an external pub/sub
// backplane and is out of scope.
package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/statusdeck/statusdeck/internal/auth"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Conn is the slice of a websocket connection the hub needs. Satisfied
// by *websocket.Conn; tests substitute a recorder.
type Conn interface {
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live connection. A staff session is bound to exactly
// one organization at admission and its topic set never changes; a
// viewer session starts subscribed to nothing and joins topics on
// request. Topic membership itself lives in the hub's maps — sessions
// are keys, not owners.
type Session struct {
	id       uuid.UUID
	conn     Conn
	staff    bool
	userID   uuid.UUID
	staffOrg uuid.UUID

	// writeMu serializes all writes on conn. gorilla/websocket permits
	// one concurrent writer, and both request goroutines (Publish) and
	// the keepalive pinger write to the same connection.
	writeMu sync.Mutex
}

// Staff reports whether the session carried a valid credential at
// connect time. Never re-evaluated for the life of the connection.
func (s *Session) Staff() bool { return s.staff }

func (s *Session) writeEvent(ev Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(ev)
}

func (s *Session) writePing() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub is the synchronized connection-to-topic registry. All membership
// mutation goes through its methods; nothing else touches the maps.
type Hub struct {
	mu sync.RWMutex
	// topics: organization id → subscribed sessions.
	topics map[uuid.UUID]map[*Session]struct{}
	// joined: reverse index, session → its topics, so disconnect can
	// drop every membership without scanning all topics.
	joined map[*Session]map[uuid.UUID]struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		topics: make(map[uuid.UUID]map[*Session]struct{}),
		joined: make(map[*Session]map[uuid.UUID]struct{}),
		logger: logger,
	}
}

// Register admits a connection. Valid staff claims bind the session to
// its own organization's topic immediately; nil claims admit an
// anonymous viewer subscribed to nothing. An invalid credential must be
// demoted to nil claims by the caller before Register — a bad token
// degrades to public viewer, it does not refuse the connection.
func (h *Hub) Register(conn Conn, claims *auth.Claims) *Session {
	s := &Session{
		id:   uuid.New(),
		conn: conn,
	}
	if claims != nil {
		s.staff = true
		s.userID = claims.UserID
		s.staffOrg = claims.OrganizationID
	}

	h.mu.Lock()
	h.joined[s] = make(map[uuid.UUID]struct{})
	if s.staff {
		h.subscribeLocked(s, s.staffOrg)
	}
	h.mu.Unlock()

	if s.staff {
		h.logger.Info("staff session connected",
			zap.String("session_id", s.id.String()),
			zap.String("user_id", s.userID.String()),
			zap.String("organization_id", s.staffOrg.String()),
		)
	} else {
		h.logger.Info("viewer session connected", zap.String("session_id", s.id.String()))
	}
	return s
}

// Join subscribes a viewer session to an organization's topic. There is
// no existence check on the id and no limit on how many topics a viewer
// joins — public pages discover the id by slug and join it. Staff
// sessions are pinned to their own organization: a joinTopic for a
// foreign org is ignored.
func (h *Hub) Join(s *Session, organizationID uuid.UUID) {
	if s.staff && organizationID != s.staffOrg {
		h.logger.Warn("staff session attempted foreign topic join",
			zap.String("session_id", s.id.String()),
			zap.String("user_id", s.userID.String()),
			zap.String("requested_organization_id", organizationID.String()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, registered := h.joined[s]; !registered {
		// Disconnect raced the join; do not resurrect the session.
		return
	}
	h.subscribeLocked(s, organizationID)
}

func (h *Hub) subscribeLocked(s *Session, organizationID uuid.UUID) {
	if h.topics[organizationID] == nil {
		h.topics[organizationID] = make(map[*Session]struct{})
	}
	h.topics[organizationID][s] = struct{}{}
	h.joined[s][organizationID] = struct{}{}
}

// Unregister synchronously removes the session from every topic. No
// grace period, no replay: a reconnecting client re-fetches current
// state over HTTP before trusting the stream again.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	for organizationID := range h.joined[s] {
		delete(h.topics[organizationID], s)
		if len(h.topics[organizationID]) == 0 {
			delete(h.topics, organizationID)
		}
	}
	delete(h.joined, s)
	h.mu.Unlock()
}

// Publish delivers an event to every session subscribed to its
// organization's topic — and only that topic. At-most-once: writes get a
// deadline, failed or slow subscribers are dropped and closed, and
// nothing here ever propagates an error back to the committing request.
// Callers invoke Publish only after their transaction has committed.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	subscribers := h.topics[ev.OrganizationID]
	if len(subscribers) == 0 {
		h.mu.RUnlock()
		return
	}
	sessions := make([]*Session, 0, len(subscribers))
	for s := range subscribers {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.writeEvent(ev); err != nil {
			h.drop(s, ev, err)
		}
	}

	h.logger.Debug("event published",
		zap.String("type", string(ev.Type)),
		zap.String("organization_id", ev.OrganizationID.String()),
		zap.Int("subscribers", len(sessions)),
	)
}

func (h *Hub) drop(s *Session, ev Event, err error) {
	h.logger.Warn("dropping dead subscriber",
		zap.String("session_id", s.id.String()),
		zap.String("event_type", string(ev.Type)),
		zap.Error(err),
	)
	h.Unregister(s)
	s.conn.Close()
}

// SubscriberCount reports how many sessions a topic currently has.
func (h *Hub) SubscriberCount(organizationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[organizationID])
}
