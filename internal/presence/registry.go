// Package presence tracks which connections are spectating which
// match. The registry is the coordinator's own bookkeeping of roster
// membership; the transport's group mechanism is kept in step by the
// gateway, which pairs every mutation here with the matching group
// call.
package presence

import (
	"strings"
	"sync"
)

// Spectator is one viewer of a match. Exactly one Spectator exists per
// connection per match, and a connection holds at most one active
// match membership at a time.
type Spectator struct {
	MemberID     int    `json:"memberId"`
	DisplayName  string `json:"displayName"`
	AvatarURL    string `json:"avatarUrl"`
	ClubName     string `json:"clubName"`
	ConnectionID string `json:"connectionId"`
}

// NormalizeCode uppercases a match code for use as a lookup key or
// group name. Codes are case-insensitive everywhere.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry is the process-wide presence table. Construct one per
// process and inject it into the gateway; tests get their own isolated
// instance. Locking is per match bucket and per connection entry, so
// activity in one match never contends with another.
type Registry struct {
	matches sync.Map // match code -> *matchBucket
	conns   sync.Map // connection ID -> *connState
}

type matchBucket struct {
	mu      sync.Mutex
	defunct bool // bucket was emptied and unlinked; loaders must retry
	order   []string
	byConn  map[string]Spectator
}

type connState struct {
	mu   sync.Mutex
	code string // current match, "" when connected but not viewing
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Connect creates the reverse-index entry for a new connection.
func (r *Registry) Connect(connectionID string) {
	r.conns.LoadOrStore(connectionID, &connState{})
}

// JoinMatch registers the spectator for the match. If the connection
// was already viewing another match it is evicted from that one first;
// the evicted code is returned so the caller can rebroadcast that
// match's roster. Re-registering for the same match replaces the entry
// in place, keeping its roster position. The returned roster is the
// full spectator list of the joined match.
func (r *Registry) JoinMatch(connectionID, code string, spec Spectator) (roster []Spectator, evicted string) {
	code = NormalizeCode(code)
	spec.ConnectionID = connectionID

	v, _ := r.conns.LoadOrStore(connectionID, &connState{})
	cs := v.(*connState)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.code != "" && cs.code != code {
		evicted = cs.code
		r.removeFromBucket(cs.code, connectionID)
	}
	r.insert(code, connectionID, spec)
	cs.code = code
	return r.ListSpectators(code), evicted
}

// LeaveMatch removes the spectator from the match's set. Unknown codes
// and untracked connections are safe no-ops; duplicate leave calls are
// expected races, not errors.
func (r *Registry) LeaveMatch(connectionID, code string) {
	code = NormalizeCode(code)
	v, ok := r.conns.Load(connectionID)
	if ok {
		cs := v.(*connState)
		cs.mu.Lock()
		defer cs.mu.Unlock()
		if cs.code == code {
			cs.code = ""
		}
	}
	r.removeFromBucket(code, connectionID)
}

// Disconnect evicts the connection from whatever match the reverse
// index holds and discards the reverse-index entry. Idempotent.
func (r *Registry) Disconnect(connectionID string) (code string, hadMatch bool) {
	v, ok := r.conns.LoadAndDelete(connectionID)
	if !ok {
		return "", false
	}
	cs := v.(*connState)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.code == "" {
		return "", false
	}
	code = cs.code
	cs.code = ""
	r.removeFromBucket(code, connectionID)
	return code, true
}

// ListSpectators returns a snapshot of the match's roster in insertion
// order, empty when the code has no active viewers.
func (r *Registry) ListSpectators(code string) []Spectator {
	v, ok := r.matches.Load(NormalizeCode(code))
	if !ok {
		return []Spectator{}
	}
	b := v.(*matchBucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	roster := make([]Spectator, 0, len(b.order))
	for _, id := range b.order {
		roster = append(roster, b.byConn[id])
	}
	return roster
}

func (r *Registry) insert(code, connectionID string, spec Spectator) {
	for {
		v, _ := r.matches.LoadOrStore(code, &matchBucket{byConn: make(map[string]Spectator)})
		b := v.(*matchBucket)
		b.mu.Lock()
		if b.defunct {
			b.mu.Unlock()
			continue
		}
		if _, exists := b.byConn[connectionID]; !exists {
			b.order = append(b.order, connectionID)
		}
		b.byConn[connectionID] = spec
		b.mu.Unlock()
		return
	}
}

func (r *Registry) removeFromBucket(code, connectionID string) {
	v, ok := r.matches.Load(code)
	if !ok {
		return
	}
	b := v.(*matchBucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byConn[connectionID]; !exists {
		return
	}
	delete(b.byConn, connectionID)
	for i, id := range b.order {
		if id == connectionID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	if len(b.byConn) == 0 {
		b.defunct = true
		r.matches.Delete(code)
	}
}
