package gateway

import "sync"

// groupTable maps group names to member connections. Locking is per
// group; traffic in one match never contends with another.
type groupTable struct {
	groups sync.Map // group name -> *group
}

type group struct {
	mu      sync.Mutex
	defunct bool
	conns   map[*Conn]bool
}

func (t *groupTable) subscribe(name string, c *Conn) {
	for {
		v, _ := t.groups.LoadOrStore(name, &group{conns: make(map[*Conn]bool)})
		g := v.(*group)
		g.mu.Lock()
		if g.defunct {
			g.mu.Unlock()
			continue
		}
		g.conns[c] = true
		g.mu.Unlock()
		c.trackGroup(name)
		return
	}
}

func (t *groupTable) unsubscribe(name string, c *Conn) {
	c.untrackGroup(name)
	v, ok := t.groups.Load(name)
	if !ok {
		return
	}
	g := v.(*group)
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c)
	if len(g.conns) == 0 {
		g.defunct = true
		t.groups.Delete(name)
	}
}

// broadcast snapshots the group's members and hands the frame to each
// connection. A group with no current members is a silent no-op.
func (t *groupTable) broadcast(name string, frame []byte) int {
	v, ok := t.groups.Load(name)
	if !ok {
		return 0
	}
	g := v.(*group)
	g.mu.Lock()
	targets := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		c.trySend(frame)
	}
	return len(targets)
}

func (t *groupTable) count() int {
	n := 0
	t.groups.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
