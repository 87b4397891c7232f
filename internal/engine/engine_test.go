package engine_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/config"
	"daybook/internal/db"
	"daybook/internal/domain"
	"daybook/internal/download"
	"daybook/internal/engine"
	"daybook/internal/events"
	"daybook/internal/migrate"
	"daybook/internal/tasks"
	"daybook/internal/view"
)

type testEnv struct {
	Engine *engine.Engine
	Ctx    context.Context
	Remote *httptest.Server
	Online *atomic.Bool
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	online := &atomic.Bool{}
	online.Store(true)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/todos":
			w.Write([]byte(`[{"id":1,"title":"Remote one","completed":false},{"id":2,"title":"Remote two","completed":true}]`))
		case "/videos":
			w.Write([]byte(`[{"id":"v1","title":"Clip","author":"Ann","duration":"1:00","thumbnailUrl":"t","videoUrl":"` + srv.URL + `/media/v1"}]`))
		case "/media/v1":
			w.Write([]byte("movie"))
		case "/probe":
			if !online.Load() {
				panic(http.ErrAbortHandler)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default()
	cfg.Remote.TasksURL = srv.URL + "/todos"
	cfg.Remote.VideosURL = srv.URL + "/videos"
	cfg.Reachability.ProbeURL = srv.URL + "/probe"
	eng, err := engine.New(conn, cfg, engine.Options{
		MediaDir: cfg.MediaDir(db.StateDir(dir)),
		Now:      func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) },
		Online:   true,
	})
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return testEnv{Engine: eng, Ctx: context.Background(), Remote: srv, Online: online}
}

func TestStartSeedsFromRemoteAndPersists(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.Start(env.Ctx))

	snap := env.Engine.Tasks.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, domain.DefaultDescription, snap.Items[0].Description)

	var stored []domain.Task
	require.NoError(t, env.Engine.KV.Load(env.Ctx, tasks.StorageKey, &stored))
	assert.Len(t, stored, 2)
}

func TestTaskMutationsAreLogged(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.Start(env.Ctx))

	task, err := env.Engine.Tasks.Add(env.Ctx, tasks.Input{
		Title:   "Write report",
		DueDate: time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, ok := env.Engine.Tasks.Toggle(env.Ctx, task.ID)
	require.True(t, ok)

	evts, err := env.Engine.Events.Latest(env.Ctx, 10, events.Filter{EntityKind: "task"})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "task.toggle", evts[0].Type)
	assert.Equal(t, "task.add", evts[1].Type)
	assert.JSONEq(t, `{"title":"Write report","completed":false,"priority":"low"}`, evts[1].Payload)
}

func TestAgendaUsesStoreFilterAndSort(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.Start(env.Ctx))
	day := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)

	low, err := env.Engine.Tasks.Add(env.Ctx, tasks.Input{Title: "Low", DueDate: day})
	require.NoError(t, err)
	high, err := env.Engine.Tasks.Add(env.Ctx, tasks.Input{Title: "High", DueDate: day.Add(time.Hour), Priority: domain.PriorityHigh})
	require.NoError(t, err)

	got := env.Engine.Agenda(day, "", "")
	require.Len(t, got, 2)
	assert.Equal(t, low.ID, got[0].ID)

	require.NoError(t, env.Engine.Tasks.SetSort(domain.SortPriority))
	got = env.Engine.Agenda(day, "", "")
	assert.Equal(t, high.ID, got[0].ID)

	got = env.Engine.Agenda(day, domain.FilterCompleted, "")
	assert.Empty(t, got)
}

func TestDownloadMarksCatalogAndPlaysLocally(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.Start(env.Ctx))

	items, err := env.Engine.Catalog(env.Ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, view.StatusNotDownloaded, items[0].Status)

	src, err := env.Engine.PlaybackSource(env.Ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, view.SourceRemote, src.Kind)

	res, err := env.Engine.Download(env.Ctx, "v1", download.Options{})
	require.NoError(t, err)
	assert.Equal(t, download.StateCommitted, res.State)
	assert.Equal(t, "v1.mp4", filepath.Base(res.Path))

	items, err = env.Engine.Catalog(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, view.StatusDownloaded, items[0].Status)

	src, err = env.Engine.PlaybackSource(env.Ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, view.SourceLocal, src.Kind)
	assert.Equal(t, res.Path, src.Location)

	evts, err := env.Engine.Events.Latest(env.Ctx, 1, events.Filter{Type: "video.downloaded"})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "v1", evts[0].EntityID)
}

func TestDownloadOfflineIsBlocked(t *testing.T) {
	env := newTestEnv(t)
	env.Online.Store(false)

	res, err := env.Engine.Download(env.Ctx, "v1", download.Options{})
	assert.ErrorIs(t, err, download.ErrOffline)
	assert.Equal(t, download.StateBlocked, res.State)
	assert.False(t, env.Engine.Videos.IsDownloaded("v1"))

	evts, err := env.Engine.Events.Latest(env.Ctx, 1, events.Filter{Type: "network.changed"})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.JSONEq(t, `{"online":false}`, evts[0].Payload)
}

func TestDownloadUnknownVideo(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Download(env.Ctx, "nope", download.Options{})
	assert.True(t, errors.Is(err, engine.ErrVideoNotFound))
}

func TestNewRejectsBadPolicies(t *testing.T) {
	cfg := config.Default()
	cfg.Downloads.OnCollision = "merge"
	_, err := engine.New(nil, cfg, engine.Options{})
	assert.Error(t, err)

	_, err = engine.New(nil, nil, engine.Options{})
	assert.Error(t, err)
}
