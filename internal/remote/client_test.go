package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/remote"
)

func TestTodosAndVideos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/todos":
			w.Write([]byte(`[{"id":1,"title":"A","completed":false,"userId":9}]`))
		case "/videos":
			w.Write([]byte(`[{"id":"v1","title":"Clip","author":"Ann","duration":"1:00","thumbnailUrl":"t","videoUrl":"u"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := remote.New(srv.URL+"/todos", srv.URL+"/videos", 0)
	todos, err := c.Todos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []remote.Todo{{ID: 1, Title: "A"}}, todos)

	videos, err := c.Videos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "v1", videos[0].ID)
	assert.Equal(t, "u", videos[0].VideoURL)
}

func TestNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := remote.New(srv.URL, srv.URL, 0).Videos(context.Background())
	var apiErr *remote.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "nope", apiErr.Body)
}

func TestMissingURL(t *testing.T) {
	_, err := remote.New("", "", 0).Todos(context.Background())
	assert.Error(t, err)
}
