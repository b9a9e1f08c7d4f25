package gateway

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rangecrew/matchlive/internal/presence"
)

// EventType names an outbound notification.
type EventType string

const (
	EventSpectatorListUpdated EventType = "SpectatorListUpdated"
	EventJoinRequestReceived  EventType = "JoinRequestReceived"
	EventJoinRequestAccepted  EventType = "JoinRequestAccepted"
	EventJoinRequestBlocked   EventType = "JoinRequestBlocked"
	EventParticipantJoined    EventType = "ParticipantJoined"
	EventParticipantLeft      EventType = "ParticipantLeft"
	EventScoreUpdated         EventType = "ScoreUpdated"
	EventTeamScoreUpdated     EventType = "TeamScoreUpdated"
	EventMatchCompleted       EventType = "MatchCompleted"
	EventMatchStarted         EventType = "MatchStarted"
	EventMatchRefresh         EventType = "MatchRefresh"
	EventMatchDeleted         EventType = "MatchDeleted"
	EventSettingsUpdated      EventType = "SettingsUpdated"
)

// Event is the envelope pushed to clients. Data is owned by whatever
// component raised the event; the gateway never inspects it.
type Event struct {
	ID        string          `json:"id"`
	MatchCode string          `json:"matchCode,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MatchGroup names the broadcast group holding all viewers of a match.
func MatchGroup(code string) string {
	return "match_" + presence.NormalizeCode(code)
}

// OrganizerGroup names the group of parties wanting join-request
// notifications for a match.
func OrganizerGroup(code string) string {
	return "organizer_" + presence.NormalizeCode(code)
}

// MemberGroup names a member's personal notification channel.
func MemberGroup(memberID int) string {
	return "member_" + strconv.Itoa(memberID)
}
