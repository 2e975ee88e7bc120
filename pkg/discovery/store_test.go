package discovery

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RegisterPlaceholder(t *testing.T) {
	s := NewStore()

	require.True(t, s.Register("/src/alpha"))
	rec, ok := s.Get("/src/alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", rec.DisplayName)
	assert.Equal(t, StatusUnknown, rec.Status())
	assert.True(t, rec.Pending())

	s.Upsert(Record{Path: "/src/alpha", DisplayName: "alpha", Resolved: true})
	assert.False(t, s.Register("/src/alpha"), "register must not regress a resolved record")
	rec, _ = s.Get("/src/alpha")
	assert.Equal(t, StatusClean, rec.Status())
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := NewStore()
	rec := Record{Path: "/src/alpha", DisplayName: "alpha", Changes: 2, Resolved: true}

	s.Upsert(rec)
	first := s.Snapshot()
	s.Upsert(rec)
	second := s.Snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.Len())
}

func TestStore_UpsertReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.Upsert(Record{Path: "/src/alpha", DisplayName: "alpha", Changes: 2, Ahead: 1, Resolved: true})
	s.Upsert(Record{Path: "/src/alpha", ProbeError: "boom"})

	rec, _ := s.Get("/src/alpha")
	assert.Equal(t, Record{Path: "/src/alpha", ProbeError: "boom"}, rec)
}

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	s.Register("/src/alpha")

	assert.True(t, s.Remove("/src/alpha"))
	assert.False(t, s.Remove("/src/alpha"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_SnapshotOrdered(t *testing.T) {
	s := NewStore()
	for _, p := range []string{"/src/zeta", "/src/alpha", "/src/mid"} {
		s.Register(p)
	}

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "/src/alpha", snap[0].Path)
	assert.Equal(t, "/src/mid", snap[1].Path)
	assert.Equal(t, "/src/zeta", snap[2].Path)

	// The snapshot is a copy.
	snap[0].DisplayName = "mutated"
	rec, _ := s.Get("/src/alpha")
	assert.Equal(t, "alpha", rec.DisplayName)
}

func TestStore_Filter(t *testing.T) {
	s := NewStore()
	s.Upsert(Record{Path: "/home/me/src/MyProject", DisplayName: "MyProject"})
	s.Upsert(Record{Path: "/home/me/projects/tool", DisplayName: "tool"})
	s.Upsert(Record{Path: "/home/me/src/checkout", DisplayName: "PROJ-archive"})
	s.Upsert(Record{Path: "/home/me/src/other", DisplayName: "other"})

	got := s.Filter("proj")
	paths := make([]string, len(got))
	for i, r := range got {
		paths[i] = r.Path
	}
	assert.Equal(t, []string{
		"/home/me/projects/tool",
		"/home/me/src/MyProject",
		"/home/me/src/checkout",
	}, paths)

	assert.Len(t, s.Filter(""), 4)
	assert.Len(t, s.Filter("  "), 4)
	assert.Empty(t, s.Filter("nothing-matches"))
}

func TestStore_ClaimApplyLastProbeWins(t *testing.T) {
	s := NewStore()
	s.Register("/src/alpha")

	older := s.Claim("/src/alpha")
	newer := s.Claim("/src/alpha")

	assert.True(t, s.Apply(newer, Record{DisplayName: "alpha", Changes: 1, Resolved: true}))
	assert.False(t, s.Apply(older, Record{DisplayName: "alpha", Resolved: true}), "stale probe must not overwrite")

	rec, _ := s.Get("/src/alpha")
	assert.Equal(t, 1, rec.Changes)
	assert.Equal(t, "/src/alpha", rec.Path, "apply keys by the ticket path")
	assert.Equal(t, "/src/alpha", newer.Path())
}

func TestStore_RemoveInvalidatesInflight(t *testing.T) {
	s := NewStore()
	s.Register("/src/alpha")
	ticket := s.Claim("/src/alpha")

	s.Remove("/src/alpha")
	assert.False(t, s.Apply(ticket, Record{Resolved: true}))
	_, ok := s.Get("/src/alpha")
	assert.False(t, ok, "forgotten repository must not be resurrected by a late probe")
}

func TestStore_Counts(t *testing.T) {
	s := NewStore()
	s.Upsert(Record{Path: "/a", Resolved: true})
	s.Upsert(Record{Path: "/b", Resolved: true, Changes: 3})
	s.Upsert(Record{Path: "/c", Resolved: true, Ahead: 2})
	s.Upsert(Record{Path: "/d", Resolved: true, Changes: 1, Ahead: 1})
	s.Upsert(Record{Path: "/e"})
	s.Upsert(Record{Path: "/f", Resolved: true})

	assert.Equal(t, map[Status]int{
		StatusClean:                   2,
		StatusLocalChanges:            1,
		StatusUnpushed:                1,
		StatusLocalChangesAndUnpushed: 1,
		StatusUnknown:                 1,
	}, s.Counts())

	empty := NewStore().Counts()
	assert.Len(t, empty, len(Statuses))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		path := fmt.Sprintf("/src/repo-%02d", i)
		go func() {
			defer wg.Done()
			s.Register(path)
			ticket := s.Claim(path)
			s.Apply(ticket, Record{DisplayName: path, Changes: 1, Ahead: 1, Resolved: true})
		}()
		go func() {
			defer wg.Done()
			for _, rec := range s.Snapshot() {
				if rec.Resolved && (rec.Changes != 1 || rec.Ahead != 1) {
					panic("observed a half-applied record")
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	assert.Equal(t, 50, s.Counts()[StatusLocalChangesAndUnpushed])
}
