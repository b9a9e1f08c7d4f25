package presence

import (
	"fmt"
	"sync"
	"testing"
)

func spectator(member int, name string) Spectator {
	return Spectator{MemberID: member, DisplayName: name, ClubName: "Holmen SK"}
}

func TestJoinMatchEvictsPreviousMembership(t *testing.T) {
	r := NewRegistry()
	r.Connect("conn-1")

	roster, evicted := r.JoinMatch("conn-1", "ABC123", spectator(1, "Anna"))
	if evicted != "" {
		t.Errorf("first join evicted %q, want none", evicted)
	}
	if len(roster) != 1 {
		t.Fatalf("roster after first join has %d entries, want 1", len(roster))
	}

	roster, evicted = r.JoinMatch("conn-1", "XYZ999", spectator(1, "Anna"))
	if evicted != "ABC123" {
		t.Errorf("evicted = %q, want ABC123", evicted)
	}
	if len(roster) != 1 {
		t.Errorf("roster of new match has %d entries, want 1", len(roster))
	}
	if got := r.ListSpectators("ABC123"); len(got) != 0 {
		t.Errorf("old match still lists %d spectators, want 0", len(got))
	}
}

func TestJoinMatchReplacesNotDuplicates(t *testing.T) {
	r := NewRegistry()
	r.Connect("conn-1")
	r.Connect("conn-2")

	r.JoinMatch("conn-1", "ABC123", spectator(1, "Anna"))
	r.JoinMatch("conn-2", "ABC123", spectator(2, "Bjorn"))
	roster, evicted := r.JoinMatch("conn-1", "ABC123", spectator(1, "Anna K"))
	if evicted != "" {
		t.Errorf("re-register evicted %q, want none", evicted)
	}
	if len(roster) != 2 {
		t.Fatalf("roster has %d entries, want 2", len(roster))
	}
	// Replacement keeps the original roster position.
	if roster[0].DisplayName != "Anna K" || roster[1].DisplayName != "Bjorn" {
		t.Errorf("roster order = [%s, %s], want [Anna K, Bjorn]", roster[0].DisplayName, roster[1].DisplayName)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := NewRegistry()

	// Never-seen connection.
	if code, had := r.Disconnect("ghost"); had {
		t.Errorf("Disconnect(ghost) = (%q, true), want no match", code)
	}

	// Connected but not viewing.
	r.Connect("conn-1")
	if code, had := r.Disconnect("conn-1"); had {
		t.Errorf("Disconnect = (%q, true), want no match", code)
	}

	// Viewing, then double disconnect.
	r.Connect("conn-2")
	r.JoinMatch("conn-2", "ABC123", spectator(2, "Bjorn"))
	code, had := r.Disconnect("conn-2")
	if !had || code != "ABC123" {
		t.Errorf("Disconnect = (%q, %v), want (ABC123, true)", code, had)
	}
	if _, had := r.Disconnect("conn-2"); had {
		t.Error("second Disconnect reported a match, want no-op")
	}
	if got := r.ListSpectators("ABC123"); len(got) != 0 {
		t.Errorf("roster after disconnect has %d entries, want 0", len(got))
	}
}

func TestLeaveMatchUnknownIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.LeaveMatch("conn-1", "NOPE00")

	r.Connect("conn-1")
	r.JoinMatch("conn-1", "ABC123", spectator(1, "Anna"))
	r.LeaveMatch("conn-1", "OTHER1")
	if got := r.ListSpectators("ABC123"); len(got) != 1 {
		t.Errorf("leave of other match touched roster, have %d entries, want 1", len(got))
	}

	r.LeaveMatch("conn-1", "abc123")
	if got := r.ListSpectators("ABC123"); len(got) != 0 {
		t.Errorf("roster after leave has %d entries, want 0", len(got))
	}
	// Duplicate leave is an expected race.
	r.LeaveMatch("conn-1", "ABC123")
}

func TestListSpectatorsInsertionOrderAndIsolation(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= 3; i++ {
		conn := fmt.Sprintf("conn-%d", i)
		r.Connect(conn)
		r.JoinMatch(conn, "abc123", spectator(i, fmt.Sprintf("member-%d", i)))
	}
	r.Connect("conn-4")
	r.JoinMatch("conn-4", "XYZ999", spectator(4, "member-4"))

	roster := r.ListSpectators("ABC123")
	if len(roster) != 3 {
		t.Fatalf("ListSpectators(ABC123) has %d entries, want 3", len(roster))
	}
	for i, s := range roster {
		if s.MemberID != i+1 {
			t.Errorf("roster[%d].MemberID = %d, want %d", i, s.MemberID, i+1)
		}
	}
	for _, s := range roster {
		if s.MemberID == 4 {
			t.Error("spectator of XYZ999 leaked into ABC123 roster")
		}
	}
	if got := r.ListSpectators("unseen"); got == nil || len(got) != 0 {
		t.Errorf("ListSpectators(unseen) = %v, want empty slice", got)
	}
}

func TestConcurrentJoinsAndDisconnects(t *testing.T) {
	r := NewRegistry()
	const workers = 32
	const hops = 20

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			conn := fmt.Sprintf("conn-%d", w)
			r.Connect(conn)
			for h := 0; h < hops; h++ {
				code := fmt.Sprintf("MATCH%d", (w+h)%4)
				r.JoinMatch(conn, code, spectator(w, conn))
			}
			if w%2 == 0 {
				r.Disconnect(conn)
			}
		}(w)
	}
	wg.Wait()

	// Every surviving connection appears in exactly one roster, and
	// rosters only contain surviving connections.
	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		for _, s := range r.ListSpectators(fmt.Sprintf("MATCH%d", i)) {
			seen[s.ConnectionID]++
		}
	}
	for conn, n := range seen {
		if n != 1 {
			t.Errorf("connection %s appears in %d rosters, want 1", conn, n)
		}
	}
	total := 0
	for w := 0; w < workers; w++ {
		if w%2 != 0 {
			total++
			if seen[fmt.Sprintf("conn-%d", w)] != 1 {
				t.Errorf("surviving conn-%d missing from all rosters", w)
			}
		}
	}
	if len(seen) != total {
		t.Errorf("rosters hold %d connections, want %d", len(seen), total)
	}
}
