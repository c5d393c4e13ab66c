package ws

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/auth"
	"github.com/statusdeck/statusdeck/internal/models"
	"go.uber.org/zap"
)

// fakeConn records every event written to it.
type fakeConn struct {
	mu       sync.Mutex
	events   []Event
	failWith error
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.events = append(c.events, v.(Event))
	return nil
}

func (c *fakeConn) WriteMessage(int, []byte) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func newTestHub() *Hub {
	return NewHub(zap.NewNop())
}

func staffClaims(orgID uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), OrganizationID: orgID, Role: models.RoleEditor}
}

func incidentIn(orgID uuid.UUID) *models.Incident {
	return &models.Incident{ID: uuid.New(), OrganizationID: orgID}
}

func TestStaffAutoSubscribedToOwnTopic(t *testing.T) {
	hub := newTestHub()
	orgID := uuid.New()
	conn := &fakeConn{}
	hub.Register(conn, staffClaims(orgID))

	hub.Publish(IncidentCreated(incidentIn(orgID)))

	got := conn.received()
	if len(got) != 1 {
		t.Fatalf("staff received %d events, want 1", len(got))
	}
	if got[0].Type != EventIncidentCreated {
		t.Fatalf("event type = %q, want incidentCreated", got[0].Type)
	}
}

func TestViewerSubscribedToNothingUntilJoin(t *testing.T) {
	hub := newTestHub()
	orgID := uuid.New()
	conn := &fakeConn{}
	sess := hub.Register(conn, nil)

	hub.Publish(IncidentCreated(incidentIn(orgID)))
	if n := len(conn.received()); n != 0 {
		t.Fatalf("viewer received %d events before joining, want 0", n)
	}

	hub.Join(sess, orgID)
	hub.Publish(IncidentUpdated(incidentIn(orgID)))
	if n := len(conn.received()); n != 1 {
		t.Fatalf("viewer received %d events after joining, want 1", n)
	}
}

func TestTopicIsolation(t *testing.T) {
	hub := newTestHub()
	orgA := uuid.New()
	orgB := uuid.New()

	connA := &fakeConn{}
	sessA := hub.Register(connA, nil)
	hub.Join(sessA, orgA)

	connB := &fakeConn{}
	sessB := hub.Register(connB, nil)
	hub.Join(sessB, orgB)

	hub.Publish(IncidentCreated(incidentIn(orgA)))
	hub.Publish(ServiceUpdated(&models.Service{ID: uuid.New(), OrganizationID: orgB}))

	for _, ev := range connA.received() {
		if ev.OrganizationID != orgA {
			t.Fatalf("session on topic A received event for org %s", ev.OrganizationID)
		}
	}
	for _, ev := range connB.received() {
		if ev.OrganizationID != orgB {
			t.Fatalf("session on topic B received event for org %s", ev.OrganizationID)
		}
	}
	if len(connA.received()) != 1 || len(connB.received()) != 1 {
		t.Fatalf("received counts = %d, %d, want 1, 1", len(connA.received()), len(connB.received()))
	}
}

// Random interleavings of joins, publishes, and disconnects: no session
// may ever hold an event for a topic it was not subscribed to, and no
// session may receive anything after its disconnect.
func TestTopicIsolationUnderRandomInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	orgs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	for trial := 0; trial < 50; trial++ {
		hub := newTestHub()

		type member struct {
			conn              *fakeConn
			sess              *Session
			topics            map[uuid.UUID]bool
			gone              bool
			countAtDisconnect int
		}
		var members []*member
		for i := 0; i < 5; i++ {
			conn := &fakeConn{}
			members = append(members, &member{
				conn:   conn,
				sess:   hub.Register(conn, nil),
				topics: make(map[uuid.UUID]bool),
			})
		}

		for step := 0; step < 60; step++ {
			m := members[rng.Intn(len(members))]
			org := orgs[rng.Intn(len(orgs))]
			switch rng.Intn(4) {
			case 0:
				if !m.gone {
					hub.Join(m.sess, org)
					m.topics[org] = true
				}
			case 1, 2:
				hub.Publish(IncidentUpdated(incidentIn(org)))
			case 3:
				if !m.gone {
					hub.Unregister(m.sess)
					m.gone = true
					m.countAtDisconnect = len(m.conn.received())
				}
			}
		}

		for i, m := range members {
			for _, ev := range m.conn.received() {
				if !m.topics[ev.OrganizationID] {
					t.Fatalf("trial %d: member %d received event for org %s it never joined", trial, i, ev.OrganizationID)
				}
			}
			if m.gone {
				if got := len(m.conn.received()); got != m.countAtDisconnect {
					t.Fatalf("trial %d: member %d received %d events after disconnect (had %d)", trial, i, got-m.countAtDisconnect, m.countAtDisconnect)
				}
			}
		}
	}
}

func TestStaffForeignJoinIgnored(t *testing.T) {
	hub := newTestHub()
	ownOrg := uuid.New()
	foreignOrg := uuid.New()

	conn := &fakeConn{}
	sess := hub.Register(conn, staffClaims(ownOrg))
	hub.Join(sess, foreignOrg)

	hub.Publish(IncidentCreated(incidentIn(foreignOrg)))
	if n := len(conn.received()); n != 0 {
		t.Fatalf("staff received %d foreign-topic events, want 0", n)
	}

	// Joining its own topic again is harmless.
	hub.Join(sess, ownOrg)
	hub.Publish(IncidentCreated(incidentIn(ownOrg)))
	if n := len(conn.received()); n != 1 {
		t.Fatalf("staff received %d own-topic events, want 1", n)
	}
}

func TestUnregisterRemovesFromAllTopics(t *testing.T) {
	hub := newTestHub()
	orgA := uuid.New()
	orgB := uuid.New()

	conn := &fakeConn{}
	sess := hub.Register(conn, nil)
	hub.Join(sess, orgA)
	hub.Join(sess, orgB)

	hub.Unregister(sess)
	hub.Publish(IncidentCreated(incidentIn(orgA)))
	hub.Publish(IncidentCreated(incidentIn(orgB)))

	if n := len(conn.received()); n != 0 {
		t.Fatalf("disconnected session received %d events, want 0", n)
	}
	if hub.SubscriberCount(orgA) != 0 || hub.SubscriberCount(orgB) != 0 {
		t.Fatalf("topics still hold the unregistered session")
	}
}

func TestJoinAfterUnregisterDoesNotResurrect(t *testing.T) {
	hub := newTestHub()
	orgID := uuid.New()

	conn := &fakeConn{}
	sess := hub.Register(conn, nil)
	hub.Unregister(sess)
	hub.Join(sess, orgID)

	hub.Publish(IncidentCreated(incidentIn(orgID)))
	if n := len(conn.received()); n != 0 {
		t.Fatalf("resurrected session received %d events, want 0", n)
	}
}

// overlapConn flags any moment two writers are inside a write at once.
type overlapConn struct {
	fakeConn
	writers int32
	overlap int32
}

func (c *overlapConn) enter() {
	if atomic.AddInt32(&c.writers, 1) > 1 {
		atomic.StoreInt32(&c.overlap, 1)
	}
	time.Sleep(100 * time.Microsecond)
}

func (c *overlapConn) WriteJSON(v any) error {
	c.enter()
	defer atomic.AddInt32(&c.writers, -1)
	return c.fakeConn.WriteJSON(v)
}

func (c *overlapConn) WriteMessage(int, []byte) error {
	c.enter()
	defer atomic.AddInt32(&c.writers, -1)
	return nil
}

// Publish runs on every request goroutine and the keepalive pinger has
// its own; the connection must only ever see one writer at a time.
func TestConnectionWritesAreSerialized(t *testing.T) {
	hub := newTestHub()
	orgID := uuid.New()
	conn := &overlapConn{}
	sess := hub.Register(conn, nil)
	hub.Join(sess, orgID)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				hub.Publish(IncidentUpdated(incidentIn(orgID)))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 25; j++ {
			if err := sess.writePing(); err != nil {
				t.Errorf("writePing() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if atomic.LoadInt32(&conn.overlap) != 0 {
		t.Fatalf("connection observed two concurrent writers")
	}
	if n := len(conn.received()); n != 100 {
		t.Fatalf("received %d events, want 100", n)
	}
}

func TestDeadSubscriberIsDroppedAndOthersStillDelivered(t *testing.T) {
	hub := newTestHub()
	orgID := uuid.New()

	dead := &fakeConn{failWith: errors.New("broken pipe")}
	deadSess := hub.Register(dead, nil)
	hub.Join(deadSess, orgID)

	live := &fakeConn{}
	liveSess := hub.Register(live, nil)
	hub.Join(liveSess, orgID)

	hub.Publish(IncidentCreated(incidentIn(orgID)))

	if n := len(live.received()); n != 1 {
		t.Fatalf("live subscriber received %d events, want 1", n)
	}
	if !dead.closed {
		t.Fatalf("dead subscriber was not closed")
	}
	if hub.SubscriberCount(orgID) != 1 {
		t.Fatalf("SubscriberCount = %d, want 1 after drop", hub.SubscriberCount(orgID))
	}
}

func TestDeletedEventCarriesIdentifiers(t *testing.T) {
	hub := newTestHub()
	orgID := uuid.New()
	incidentID := uuid.New()

	conn := &fakeConn{}
	sess := hub.Register(conn, nil)
	hub.Join(sess, orgID)

	hub.Publish(IncidentDeleted(orgID, incidentID))

	got := conn.received()
	if len(got) != 1 {
		t.Fatalf("received %d events, want 1", len(got))
	}
	del, ok := got[0].payload.(Deletion)
	if !ok {
		t.Fatalf("payload type = %T, want Deletion", got[0].payload)
	}
	if del.ID != incidentID || del.OrganizationID != orgID {
		t.Fatalf("deletion payload = %+v", del)
	}
}
