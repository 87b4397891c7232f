package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/config"
	"daybook/internal/domain"
	"daybook/internal/download"
	"daybook/internal/view"
)

func TestMain(m *testing.M) {
	addPersistentFlags()
	registerCommands()
	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	out = &buf
	defer func() { out = os.Stdout }()
	rootCmd.SetArgs(append(args, "--json=true"))
	require.NoError(t, rootCmd.Execute(), buf.String())
	return buf.Bytes()
}

func TestCommandsAgainstWorkspace(t *testing.T) {
	var remote *httptest.Server
	remote = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/todos":
			w.Write([]byte(`[{"id":1,"title":"Remote one","completed":false},{"id":2,"title":"Remote two","completed":true}]`))
		case "/videos":
			w.Write([]byte(`[{"id":"v1","title":"Clip","author":"Ann","duration":"1:00","thumbnailUrl":"t","videoUrl":"` + remote.URL + `/media/v1"}]`))
		case "/media/v1":
			w.Write([]byte("movie"))
		case "/probe":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer remote.Close()

	dir := t.TempDir()
	cfg := "remote:\n  tasks_url: " + remote.URL + "/todos\n  videos_url: " + remote.URL + "/videos\n" +
		"reachability:\n  probe_url: " + remote.URL + "/probe\n"
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(cfg), 0o644))

	var added []domain.Task
	require.NoError(t, json.Unmarshal(run(t, "task", "add", "-w", dir, "--title", "Plan trip", "--due", "2099-01-01", "--priority", "high"), &added))
	require.Len(t, added, 1)
	assert.Equal(t, domain.PriorityHigh, added[0].Priority)

	var listed []domain.Task
	require.NoError(t, json.Unmarshal(run(t, "task", "list", "-w", dir), &listed))
	assert.Len(t, listed, 3)

	var done []domain.Task
	require.NoError(t, json.Unmarshal(run(t, "task", "list", "-w", dir, "--filter", "completed"), &done))
	require.Len(t, done, 1)
	assert.Equal(t, "Remote two", done[0].Title)

	var agenda []domain.Task
	require.NoError(t, json.Unmarshal(run(t, "agenda", "-w", dir, "--date", "2099-01-01"), &agenda))
	require.Len(t, agenda, 1)
	assert.Equal(t, "Plan trip", agenda[0].Title)

	var videos []view.VideoItem
	require.NoError(t, json.Unmarshal(run(t, "video", "list", "-w", dir), &videos))
	require.Len(t, videos, 1)
	assert.Equal(t, view.StatusNotDownloaded, videos[0].Status)

	var res download.Result
	require.NoError(t, json.Unmarshal(run(t, "video", "download", "v1", "-w", dir), &res))
	assert.Equal(t, download.StateCommitted, res.State)

	var src view.Source
	require.NoError(t, json.Unmarshal(run(t, "video", "source", "v1", "-w", dir), &src))
	assert.Equal(t, view.SourceLocal, src.Kind)
	assert.Equal(t, res.Path, src.Location)

	var evts []domain.Event
	require.NoError(t, json.Unmarshal(run(t, "log", "tail", "-w", dir, "--type", "video.downloaded"), &evts))
	require.Len(t, evts, 1)
	assert.Equal(t, "v1", evts[0].EntityID)
}
