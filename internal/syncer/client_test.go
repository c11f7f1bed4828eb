package syncer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtop/classtop-sync/internal/schedule"
)

func TestRegister_SendsIdentityPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/clients/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req RegisterRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "uuid-1", req.UUID)
		assert.Equal(t, "desk-pc", req.Name)

		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	err := c.Register(context.Background(), srv.URL, RegisterRequest{UUID: "uuid-1", Name: "desk-pc"})
	require.NoError(t, err)
}

func TestRegister_TrailingSlashInBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clients/register", r.URL.Path)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	err := c.Register(context.Background(), srv.URL+"/", RegisterRequest{UUID: "u"})
	require.NoError(t, err)
}

func TestDo_ServerReportedFailureBecomesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":false,"message":"client not registered"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	err := c.Register(context.Background(), srv.URL, RegisterRequest{UUID: "u"})
	require.Error(t, err)

	// The server's message is preserved verbatim for diagnostics.
	assert.Contains(t, err.Error(), "client not registered")
	assert.False(t, IsTransient(err))
}

func TestDo_ServerErrorStatusIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.Health(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestDo_ClientErrorStatusIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"no such client"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.FetchCourses(context.Background(), srv.URL, "u")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "no such client")
}

func TestDo_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(nil)
	_, err := c.Health(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestPushSnapshot_SendsFullDatasetAndReturnsCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req SyncRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "uuid-1", req.ClientUUID)
		require.Len(t, req.Courses, 1)
		require.Len(t, req.Entries, 1)

		// Weeks travel as a native JSON array.
		assert.Contains(t, string(body), `"weeks":[1,2]`)

		w.Write([]byte(`{"success":true,"data":{"synced_courses":1,"synced_entries":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	counts, err := c.PushSnapshot(context.Background(), srv.URL, SyncRequest{
		ClientUUID: "uuid-1",
		Courses:    []WireCourse{{ID: 1, Name: "Math"}},
		Entries: []WireEntry{{
			ID: 10, CourseID: 1, DayOfWeek: 1,
			StartTime: "08:00", EndTime: "09:00",
			Weeks: schedule.WeekSet{1, 2},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.SyncedCourses)
	assert.Equal(t, 1, counts.SyncedEntries)
}

func TestFetchCourses_ScopedByClientUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clients/uuid-1/courses", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"courses":[{"id":1,"name":"Math","teacher":"Chen"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	courses, err := c.FetchCourses(context.Background(), srv.URL, "uuid-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Math", courses[0].Name)
}

func TestFetchSchedule_ToleratesStringSerializedWeeks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clients/uuid-1/schedule", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"schedule_entries":[
			{"id":10,"course_id":1,"day_of_week":1,"start_time":"08:00","end_time":"09:00","weeks":"[1,2,3]"},
			{"id":11,"course_id":1,"day_of_week":2,"start_time":"10:00","end_time":"11:00","weeks":[4,5]}
		]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	entries, err := c.FetchSchedule(context.Background(), srv.URL, "uuid-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, schedule.WeekSet{1, 2, 3}, entries[0].Weeks)
	assert.Equal(t, schedule.WeekSet{4, 5}, entries[1].Weeks)
}

func TestSanitizeResponseBody(t *testing.T) {
	assert.Equal(t, "plain text", sanitizeResponseBody([]byte("plain text")))
	assert.Equal(t, "a?b", sanitizeResponseBody([]byte("a\x00b")))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, sanitizeResponseBody(long), 256)
}
