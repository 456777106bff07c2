package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/apierr"
	"github.com/yungbote/tastelab-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

const bearerSubprotocol = "bearer"

type Config struct {
	OutboundBuffer  int
	InboundBuffer   int
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	// AllowedOrigins restricts the Origin header on upgrade; empty allows any.
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = 64
	}
	if c.InboundBuffer <= 0 {
		c.InboundBuffer = 16
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	return c
}

// Authenticator resolves a bearer credential to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.UserSummary, error)
}

// AccessChecker reports whether userID may edit the recipe. It fails with an
// aggregate CodeNotFound or CodeForbidden error when the user may not view it.
type AccessChecker interface {
	RecipeAccess(ctx context.Context, recipeID, userID uuid.UUID) (canEdit bool, err error)
}

type GatewayDeps struct {
	Log         *logger.Logger
	Registry    *Registry
	Broadcaster *Broadcaster
	Auth        Authenticator
	Access      AccessChecker
	Metrics     *observability.Metrics
	Config      Config
}

// Gateway upgrades authenticated HTTP requests to sockets and dispatches
// their events to the room registry and broadcaster.
type Gateway struct {
	log      *logger.Logger
	reg      *Registry
	bc       *Broadcaster
	auth     Authenticator
	access   AccessChecker
	metrics  *observability.Metrics
	cfg      Config
	upgrader websocket.Upgrader
}

func NewGateway(deps GatewayDeps) *Gateway {
	cfg := deps.Config.withDefaults()
	g := &Gateway{
		log:     deps.Log.With("component", "SessionGateway"),
		reg:     deps.Registry,
		bc:      deps.Broadcaster,
		auth:    deps.Auth,
		access:  deps.Access,
		metrics: deps.Metrics,
		cfg:     cfg,
	}
	if g.bc == nil {
		g.bc = NewBroadcaster(g.reg)
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{bearerSubprotocol},
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := strings.TrimRight(r.Header.Get("Origin"), "/")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// TokenFromRequest extracts the bearer credential from the Authorization
// header, the token query parameter or a "bearer, <token>" subprotocol pair.
func TokenFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok
	}
	protocols := websocket.Subprotocols(r)
	for i := 0; i+1 < len(protocols); i++ {
		if strings.EqualFold(protocols[i], bearerSubprotocol) {
			return strings.TrimSpace(protocols[i+1])
		}
	}
	return ""
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := g.log
	if t, ok := ctxutil.TraceFrom(r.Context()); ok {
		log = log.With(t.LogFields()...)
	}

	identity, err := g.authenticate(r)
	if err != nil {
		g.metrics.IncRealtimeAuthFailed()
		log.Debug("Realtime connection refused", "error", err)
		writeAuthError(w, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Warn("Realtime upgrade failed", "error", err)
		return
	}

	client := newClient(conn, *identity, g.cfg, log)
	g.metrics.RealtimeConnectionOpened()
	client.logger.Info("Realtime connection open")

	err = client.run(r.Context(), func(ctx context.Context, msg Message) {
		g.dispatch(ctx, client, msg)
	})

	left := g.reg.Disconnect(client.ID)
	g.metrics.RealtimeConnectionClosed()
	if err != nil {
		client.logger.Debug("Realtime connection closed with error", "error", err, "rooms_left", left)
		return
	}
	client.logger.Info("Realtime connection closed", "rooms_left", left)
}

func (g *Gateway) authenticate(r *http.Request) (*types.UserSummary, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, apierr.Unauthenticated(nil)
	}
	if g.auth == nil {
		return nil, apierr.Unauthenticated(nil)
	}
	identity, err := g.auth.Authenticate(r.Context(), token)
	if err != nil {
		return nil, apierr.Unauthenticated(err)
	}
	if identity == nil || identity.ID == uuid.Nil {
		return nil, apierr.Unauthenticated(nil)
	}
	return identity, nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	code := "authentication_failed"
	if ae, ok := apierr.As(err); ok {
		status = ae.Status
		code = ae.Code
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"message": "authentication failed",
			"code":    code,
		},
	})
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, msg Message) {
	g.metrics.IncRealtimeEvent(string(msg.Event), "in")

	switch msg.Event {
	case EventJoinRoom:
		g.handleJoin(ctx, c, msg)
	case EventLeaveRoom:
		recipeID, err := decodeRecipeID(msg.Data)
		if err != nil {
			g.reject(c, msg.Event, "invalid_payload", err.Error())
			return
		}
		g.reg.Leave(recipeID, c.ID)
	case EventIngredientChange, EventStepChange, EventRecipeMetaChange:
		g.handleEdit(c, msg)
	case EventVersionSaved:
		g.handleVersionSaved(c, msg)
	case EventCursorUpdate:
		g.handleCursor(c, msg)
	case EventRequestSync:
		recipeID, ok := g.requireMember(c, msg, false)
		if !ok {
			return
		}
		out, err := NewMessage(EventSyncRequest, SyncRequestPayload{RequestedBy: c.ID})
		if err != nil {
			return
		}
		g.bc.Relay(recipeID, c.ID, out)
	case EventSyncResponse:
		g.handleSyncResponse(c, msg)
	default:
		g.reject(c, msg.Event, "unknown_event", "unsupported event")
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, msg Message) {
	recipeID, err := decodeRecipeID(msg.Data)
	if err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return
	}
	if g.access == nil {
		g.reject(c, msg.Event, string(domainagg.CodeInternal), "access checks unavailable")
		return
	}
	canEdit, err := g.access.RecipeAccess(ctx, recipeID, c.Identity.ID)
	if err != nil {
		switch code := domainagg.CodeOf(err); code {
		case domainagg.CodeNotFound, domainagg.CodeForbidden, domainagg.CodeValidation:
			g.reject(c, msg.Event, string(code), err.Error())
		default:
			c.logger.Error("Realtime access check failed", "recipe_id", recipeID, "error", err)
			g.reject(c, msg.Event, string(domainagg.CodeInternal), "access check failed")
		}
		return
	}
	g.reg.Join(recipeID, Session{
		UserID:  c.Identity.ID,
		Name:    c.Identity.Name,
		Avatar:  c.Identity.Avatar,
		CanEdit: canEdit,
	}, c)
}

func (g *Gateway) handleEdit(c *Client, msg Message) {
	recipeID, ok := g.requireMember(c, msg, true)
	if !ok {
		return
	}
	payload, err := stampPayload(msg.Data, c.Identity.ID, c.Identity.Name)
	if err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return
	}
	out, err := NewMessage(msg.Event, payload)
	if err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return
	}
	g.bc.Relay(recipeID, c.ID, out)
}

func (g *Gateway) handleVersionSaved(c *Client, msg Message) {
	recipeID, ok := g.requireMember(c, msg, true)
	if !ok {
		return
	}
	var in struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return
	}
	out, err := NewMessage(EventVersionSaved, VersionSavedPayload{Version: in.Version, SavedBy: c.Identity.Name})
	if err != nil {
		return
	}
	g.bc.Relay(recipeID, c.ID, out)
}

func (g *Gateway) handleCursor(c *Client, msg Message) {
	recipeID, ok := g.requireMember(c, msg, false)
	if !ok {
		return
	}
	var in struct {
		Position json.RawMessage `json:"position"`
		Section  string          `json:"section"`
	}
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return
	}
	if !g.reg.UpdateCursor(recipeID, c.ID, in.Position, in.Section) {
		g.reject(c, msg.Event, "not_joined", "join the room first")
	}
}

func (g *Gateway) handleSyncResponse(c *Client, msg Message) {
	var in struct {
		RecipeID       string          `json:"recipeId"`
		TargetSocketID string          `json:"targetSocketId"`
		TargetConnID   string          `json:"targetConnId"`
		Recipe         json.RawMessage `json:"recipe"`
	}
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return
	}
	rawTarget := in.TargetConnID
	if rawTarget == "" {
		rawTarget = in.TargetSocketID
	}
	target, err := uuid.Parse(strings.TrimSpace(rawTarget))
	if err != nil {
		g.reject(c, msg.Event, "invalid_payload", "targetSocketId is required")
		return
	}
	var recipeID uuid.UUID
	if strings.TrimSpace(in.RecipeID) != "" {
		if recipeID, err = uuid.Parse(strings.TrimSpace(in.RecipeID)); err != nil {
			g.reject(c, msg.Event, "invalid_payload", err.Error())
			return
		}
	} else if shared, ok := g.reg.SharedRoom(c.ID, target); ok {
		recipeID = shared
	}
	out, err := NewMessage(EventSyncData, SyncDataPayload{Recipe: in.Recipe})
	if err != nil {
		return
	}
	if recipeID == uuid.Nil || !g.bc.SendTo(recipeID, c.ID, target, out) {
		g.reject(c, msg.Event, "not_joined", "target is not in a shared room")
	}
}

// requireMember resolves the payload's recipe and checks that the connection
// has joined it, with edit rights when needEdit is set.
func (g *Gateway) requireMember(c *Client, msg Message, needEdit bool) (uuid.UUID, bool) {
	recipeID, err := decodeRecipeID(msg.Data)
	if err != nil {
		g.reject(c, msg.Event, "invalid_payload", err.Error())
		return uuid.Nil, false
	}
	sess, ok := g.reg.Member(recipeID, c.ID)
	if !ok {
		g.reject(c, msg.Event, "not_joined", "join the room first")
		return uuid.Nil, false
	}
	if needEdit && !sess.CanEdit {
		g.reject(c, msg.Event, string(domainagg.CodeForbidden), "edit capability required")
		return uuid.Nil, false
	}
	return recipeID, true
}

func (g *Gateway) reject(c *Client, event EventType, code, message string) {
	g.metrics.IncRealtimeDenied(string(event), code)
	if !c.Send(errorMessage(event, code, message)) {
		c.logger.Warn("Dropping realtime error; outbound buffer full", "event", event, "code", code)
	}
}
