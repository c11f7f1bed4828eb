package e2e_test

import (
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classtop/classtop-sync/internal/server"
	"github.com/classtop/classtop-sync/internal/store"
	"github.com/classtop/classtop-sync/internal/syncer"
)

const testClientUUID = "11111111-2222-3333-4444-555555555555"

// harness wires a real engine, a real bbolt store, and the in-memory
// reference server behind an HTTP listener.
type harness struct {
	server *server.Server
	store  *store.Store
	engine *syncer.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	refServer := server.New(logger)
	srv := httptest.NewServer(refServer.Router())
	t.Cleanup(srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "classtop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.SetSetting(syncer.SettingServerURL, srv.URL))
	require.NoError(t, st.SetSetting(syncer.SettingClientUUID, testClientUUID))

	engine := syncer.New(st, syncer.NewClient(srv.Client()), logger, nil)

	return &harness{
		server: refServer,
		store:  st,
		engine: engine,
	}
}

// seedServer installs a dataset on the server side for this harness's
// client identity.
func (h *harness) seedServer(courses []syncer.WireCourse, entries []syncer.WireEntry) {
	h.server.SeedClient(testClientUUID, "e2e-client", courses, entries)
}
