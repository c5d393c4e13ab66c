package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/statusdeck/statusdeck/internal/auth"
	"github.com/statusdeck/statusdeck/internal/repository"
	"go.uber.org/zap"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// clientMessage is the only frame clients send: a topic join request.
type clientMessage struct {
	Type           string `json:"type"`
	OrganizationID string `json:"organization_id"`
}

// Handler upgrades HTTP requests to websocket sessions and feeds their
// join requests into the hub.
type Handler struct {
	hub            *Hub
	users          repository.UserRepository
	jwtSecret      string
	allowedOrigins []string
	logger         *zap.Logger
}

func NewHandler(hub *Hub, users repository.UserRepository, jwtSecret string, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		hub:            hub,
		users:          users,
		jwtSecret:      jwtSecret,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Serve handles GET /v1/ws. The credential is optional: a valid bearer
// token (Authorization header or ?token= for browser WebSocket clients,
// which cannot set headers) admits a staff session; anything else —
// missing, malformed, expired — admits an anonymous viewer. The failure
// mode of an expiring session is losing staff scope, not losing the
// connection.
func (h *Handler) Serve(c *gin.Context) {
	claims := h.claimsFromRequest(c)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := h.hub.Register(conn, claims)
	defer func() {
		h.hub.Unregister(sess)
		conn.Close()
		h.logger.Info("websocket session closed", zap.String("session_id", sess.id.String()))
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(sess, done)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("session_id", sess.id.String()), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "joinTopic":
			organizationID, err := uuid.Parse(msg.OrganizationID)
			if err != nil {
				h.logger.Warn("joinTopic with invalid organization id",
					zap.String("session_id", sess.id.String()),
					zap.String("organization_id", msg.OrganizationID),
				)
				continue
			}
			h.hub.Join(sess, organizationID)
		default:
			h.logger.Debug("ignoring unknown client frame",
				zap.String("session_id", sess.id.String()),
				zap.String("type", msg.Type),
			)
		}
	}
}

func (h *Handler) keepAlive(sess *Session, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sess.writePing(); err != nil {
				return
			}
		}
	}
}

// claimsFromRequest extracts the optional credential. Any verification
// failure resolves to nil — the silent demotion to viewer.
func (h *Handler) claimsFromRequest(c *gin.Context) *auth.Claims {
	token := c.Query("token")
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	return h.resolveClaims(c.Request.Context(), token)
}

// resolveClaims verifies the credential end to end: signature and
// expiry, then that the subject still exists and still has a tenant
// assignment. The user row is authoritative for the binding — a token
// minted before a reassignment binds the session to the user's current
// organization, not the one in the claim. A deleted user's unexpired
// token admits a viewer, nothing more.
func (h *Handler) resolveClaims(ctx context.Context, token string) *auth.Claims {
	if token == "" {
		return nil
	}

	claims, err := auth.ParseToken(token, h.jwtSecret)
	if err != nil {
		h.logger.Warn("websocket credential rejected, admitting as viewer", zap.Error(err))
		return nil
	}

	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		h.logger.Warn("websocket credential lookup failed, admitting as viewer", zap.Error(err))
		return nil
	}
	if user == nil || user.OrganizationID == uuid.Nil {
		h.logger.Warn("websocket credential for unknown user, admitting as viewer",
			zap.String("user_id", claims.UserID.String()),
		)
		return nil
	}

	claims.OrganizationID = user.OrganizationID
	claims.Role = user.Role
	return claims
}
