package server

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtop/classtop-sync/internal/schedule"
	"github.com/classtop/classtop-sync/internal/syncer"
)

// newTestServer exposes the reference server over HTTP and returns a
// client pointed at it.
func newTestServer(t *testing.T) (*Server, *syncer.Client, string) {
	t.Helper()

	s := New(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	return s, syncer.NewClient(srv.Client()), srv.URL
}

func TestHealth(t *testing.T) {
	_, c, baseURL := newTestServer(t)

	data, err := c.Health(context.Background(), baseURL)
	require.NoError(t, err)
	assert.Equal(t, "ok", data["status"])
}

func TestRegister_CreatesAndUpdatesClient(t *testing.T) {
	s, c, baseURL := newTestServer(t)

	err := c.Register(context.Background(), baseURL, syncer.RegisterRequest{UUID: "uuid-1", Name: "desk-pc"})
	require.NoError(t, err)

	// Re-registering the same UUID updates the name, never forks a
	// second record.
	err = c.Register(context.Background(), baseURL, syncer.RegisterRequest{UUID: "uuid-1", Name: "laptop"})
	require.NoError(t, err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Len(t, s.clients, 1)
	assert.Equal(t, "laptop", s.clients["uuid-1"].Name)
}

func TestRegister_RequiresUUID(t *testing.T) {
	_, c, baseURL := newTestServer(t)

	err := c.Register(context.Background(), baseURL, syncer.RegisterRequest{Name: "nameless"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uuid is required")
}

func TestSync_ReplacesSnapshotWholesale(t *testing.T) {
	s, c, baseURL := newTestServer(t)

	first := syncer.SyncRequest{
		ClientUUID: "uuid-1",
		Courses: []syncer.WireCourse{
			{ID: 1, Name: "Math"},
			{ID: 2, Name: "Physics"},
		},
	}

	counts, err := c.PushSnapshot(context.Background(), baseURL, first)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.SyncedCourses)

	// The second push drops course 2; the server must not keep it.
	second := syncer.SyncRequest{
		ClientUUID: "uuid-1",
		Courses:    []syncer.WireCourse{{ID: 1, Name: "Math"}},
	}

	counts, err = c.PushSnapshot(context.Background(), baseURL, second)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.SyncedCourses)

	courses, _, ok := s.ClientSnapshot("uuid-1")
	require.True(t, ok)
	require.Len(t, courses, 1)
	assert.Equal(t, "Math", courses[0].Name)
}

func TestSync_RegistersUnknownClientImplicitly(t *testing.T) {
	s, c, baseURL := newTestServer(t)

	_, err := c.PushSnapshot(context.Background(), baseURL, syncer.SyncRequest{
		ClientUUID: "uuid-new",
		Courses:    []syncer.WireCourse{{ID: 1, Name: "Math"}},
	})
	require.NoError(t, err)

	_, _, ok := s.ClientSnapshot("uuid-new")
	assert.True(t, ok)
}

func TestFetch_RoundTripsSeededDataset(t *testing.T) {
	s, c, baseURL := newTestServer(t)

	s.SeedClient("uuid-1", "desk-pc",
		[]syncer.WireCourse{{ID: 1, Name: "Math", Teacher: "Chen"}},
		[]syncer.WireEntry{{
			ID: 10, CourseID: 1, DayOfWeek: 1,
			StartTime: "08:00", EndTime: "09:00",
			Weeks: schedule.WeekSet{1, 2, 3},
		}})

	courses, err := c.FetchCourses(context.Background(), baseURL, "uuid-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Chen", courses[0].Teacher)

	entries, err := c.FetchSchedule(context.Background(), baseURL, "uuid-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, schedule.WeekSet{1, 2, 3}, entries[0].Weeks)
}

func TestFetch_UnknownClientGetsEmptyLists(t *testing.T) {
	_, c, baseURL := newTestServer(t)

	courses, err := c.FetchCourses(context.Background(), baseURL, "never-registered")
	require.NoError(t, err)
	assert.Empty(t, courses)

	entries, err := c.FetchSchedule(context.Background(), baseURL, "never-registered")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClientsAreIsolated(t *testing.T) {
	s, c, baseURL := newTestServer(t)

	s.SeedClient("uuid-a", "a", []syncer.WireCourse{{ID: 1, Name: "Math"}}, nil)
	s.SeedClient("uuid-b", "b", []syncer.WireCourse{{ID: 1, Name: "Art"}}, nil)

	coursesA, err := c.FetchCourses(context.Background(), baseURL, "uuid-a")
	require.NoError(t, err)
	coursesB, err := c.FetchCourses(context.Background(), baseURL, "uuid-b")
	require.NoError(t, err)

	require.Len(t, coursesA, 1)
	require.Len(t, coursesB, 1)
	assert.Equal(t, "Math", coursesA[0].Name)
	assert.Equal(t, "Art", coursesB[0].Name)
}
