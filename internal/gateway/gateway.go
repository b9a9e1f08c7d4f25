// Package gateway is the real-time hub: it owns connection lifecycle,
// group membership and the fan-out of named events to everyone viewing
// a match. Presence bookkeeping lives in the injected registry; every
// registry mutation is paired with the matching group call in the same
// operation so the two views cannot drift.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rangecrew/matchlive/internal/identity"
	"github.com/rangecrew/matchlive/internal/presence"
)

// Inbound operation names, as sent by clients.
const (
	ActionJoinMatchGroup      = "JoinMatchGroup"
	ActionLeaveMatchGroup     = "LeaveMatchGroup"
	ActionRegisterSpectator   = "RegisterSpectator"
	ActionUnregisterSpectator = "UnregisterSpectator"
	ActionJoinOrganizerGroup  = "JoinOrganizerGroup"
	ActionLeaveOrganizerGroup = "LeaveOrganizerGroup"
)

// Gateway coordinates live match sessions. Construct one per process
// with New and drive its broadcast loop with Run.
type Gateway struct {
	registry *presence.Registry
	resolver identity.Resolver
	groups   groupTable
	connCfg  ConnConfig
	clock    clockwork.Clock
	log      zerolog.Logger

	outbound chan outboundFrame
}

type outboundFrame struct {
	group string
	event Event
}

func New(registry *presence.Registry, resolver identity.Resolver, connCfg ConnConfig, clock clockwork.Clock, logger zerolog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		resolver: resolver,
		connCfg:  connCfg,
		clock:    clock,
		log:      logger,
		outbound: make(chan outboundFrame, 1000),
	}
}

// Run drains the outbound queue until ctx is cancelled. Broadcasts are
// serialized here, so viewers of a match observe state changes in the
// order they were enqueued.
func (g *Gateway) Run(ctx context.Context) {
	g.log.Info().Msg("gateway broadcast loop started")
	for {
		select {
		case <-ctx.Done():
			g.log.Info().Msg("gateway broadcast loop stopped")
			return
		case f := <-g.outbound:
			frame, err := json.Marshal(f.event)
			if err != nil {
				g.log.Error().Err(err).Str("event_type", string(f.event.Type)).Msg("marshal event")
				continue
			}
			n := g.groups.broadcast(f.group, frame)
			g.log.Debug().
				Str("group", f.group).
				Str("event_type", string(f.event.Type)).
				Int("receivers", n).
				Msg("event broadcast")
		}
	}
}

// connect registers a fresh connection: presence entry first, then the
// personal notification group if the credentials resolve to a member.
// Unresolved identity is not an error; the viewer just spectates
// anonymously.
func (g *Gateway) connect(ctx context.Context, c *Conn) {
	g.registry.Connect(c.ID)
	if id, ok := g.resolver.Resolve(ctx, c.creds); ok {
		c.MemberID = id
		g.groups.subscribe(MemberGroup(id), c)
	}
	g.log.Info().
		Str("connection_id", c.ID).
		Int("member_id", c.MemberID).
		Msg("connection established")
}

// disconnect mirrors connect: spectator eviction, roster rebroadcast,
// and unsubscription from every group. Identity is re-resolved through
// the same chain used at connect; if the identity source has become
// unavailable mid-disconnect that collapses to anonymous and cleanup
// still completes. Idempotent, both pumps call it on the way out.
func (g *Gateway) disconnect(c *Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	code, hadMatch := g.registry.Disconnect(c.ID)
	for _, name := range c.groupSnapshot() {
		g.groups.unsubscribe(name, c)
	}
	if id, ok := g.resolver.Resolve(context.Background(), c.creds); ok {
		g.groups.unsubscribe(MemberGroup(id), c)
	}
	if hadMatch {
		g.broadcastRoster(code)
	}
	close(c.send)

	g.log.Info().
		Str("connection_id", c.ID).
		Str("match_code", code).
		Msg("connection closed")
}

type clientOp struct {
	Action    string `json:"action"`
	MatchCode string `json:"matchCode"`
	Spectator *struct {
		MemberID    int    `json:"memberId"`
		DisplayName string `json:"displayName"`
		AvatarURL   string `json:"avatarUrl"`
		ClubName    string `json:"clubName"`
	} `json:"spectator,omitempty"`
}

// handleClientFrame dispatches one inbound operation. Malformed frames
// are dropped with a log line; nothing a client sends may take the
// process down.
func (g *Gateway) handleClientFrame(c *Conn, frame []byte) {
	var op clientOp
	if err := json.Unmarshal(frame, &op); err != nil {
		g.log.Warn().Err(err).Str("connection_id", c.ID).Msg("malformed client frame")
		return
	}
	code := presence.NormalizeCode(op.MatchCode)
	if code == "" {
		g.log.Warn().Str("connection_id", c.ID).Str("action", op.Action).Msg("operation without match code")
		return
	}

	switch op.Action {
	case ActionJoinMatchGroup:
		g.groups.subscribe(MatchGroup(code), c)
	case ActionLeaveMatchGroup:
		g.groups.unsubscribe(MatchGroup(code), c)
	case ActionJoinOrganizerGroup:
		g.groups.subscribe(OrganizerGroup(code), c)
	case ActionLeaveOrganizerGroup:
		g.groups.unsubscribe(OrganizerGroup(code), c)
	case ActionRegisterSpectator:
		spec := presence.Spectator{ConnectionID: c.ID}
		if op.Spectator != nil {
			spec.MemberID = op.Spectator.MemberID
			spec.DisplayName = op.Spectator.DisplayName
			spec.AvatarURL = op.Spectator.AvatarURL
			spec.ClubName = op.Spectator.ClubName
		}
		g.registerSpectator(c, code, spec)
	case ActionUnregisterSpectator:
		g.unregisterSpectator(c, code)
	default:
		g.log.Warn().Str("connection_id", c.ID).Str("action", op.Action).Msg("unknown action")
	}
}

// registerSpectator performs evict-if-needed registration and pairs
// the registry mutations with the group moves, then rebroadcasts the
// affected rosters. Each roster broadcast is an authoritative replace.
func (g *Gateway) registerSpectator(c *Conn, code string, spec presence.Spectator) {
	_, evicted := g.registry.JoinMatch(c.ID, code, spec)
	if evicted != "" {
		g.groups.unsubscribe(MatchGroup(evicted), c)
		g.broadcastRoster(evicted)
	}
	g.groups.subscribe(MatchGroup(code), c)
	g.broadcastRoster(code)
}

func (g *Gateway) unregisterSpectator(c *Conn, code string) {
	g.registry.LeaveMatch(c.ID, code)
	g.groups.unsubscribe(MatchGroup(code), c)
	g.broadcastRoster(code)
}

func (g *Gateway) broadcastRoster(code string) {
	g.NotifyMatchGroup(code, EventSpectatorListUpdated, g.registry.ListSpectators(code))
}

// NotifyMatchGroup emits a named event to all viewers of a match. The
// payload is opaque; its shape belongs to the caller.
func (g *Gateway) NotifyMatchGroup(code string, typ EventType, payload any) {
	g.enqueue(MatchGroup(code), presence.NormalizeCode(code), typ, payload)
}

// NotifyOrganizerGroup emits a named event to the match's organizers.
func (g *Gateway) NotifyOrganizerGroup(code string, typ EventType, payload any) {
	g.enqueue(OrganizerGroup(code), presence.NormalizeCode(code), typ, payload)
}

// NotifyMember emits a named event on a member's personal channel,
// regardless of which match they are viewing.
func (g *Gateway) NotifyMember(memberID int, typ EventType, payload any) {
	g.enqueue(MemberGroup(memberID), "", typ, payload)
}

func (g *Gateway) enqueue(groupName, code string, typ EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		g.log.Error().Err(err).Str("event_type", string(typ)).Msg("marshal payload")
		return
	}
	ev := Event{
		ID:        uuid.New().String(),
		MatchCode: code,
		Type:      typ,
		Timestamp: g.clock.Now(),
		Data:      data,
	}
	select {
	case g.outbound <- outboundFrame{group: groupName, event: ev}:
	default:
		g.log.Warn().
			Str("group", groupName).
			Str("event_type", string(typ)).
			Msg("outbound queue full, dropping event")
	}
}

// Stats reports active group and spectator counts for the ops
// endpoints.
func (g *Gateway) Stats() map[string]int {
	return map[string]int{
		"active_groups": g.groups.count(),
	}
}
