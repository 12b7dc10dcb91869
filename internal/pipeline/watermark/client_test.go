package watermark

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Clean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/remove-watermark", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		w.Write(append([]byte("clean:"), body...))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	out, err := client.Clean(context.Background(), []byte("img"))

	require.NoError(t, err)
	require.Equal(t, []byte("clean:img"), out)
}

func TestClient_CleanErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Clean(context.Background(), []byte("img"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "status 503")
}

func TestClient_CleanHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client disconnect; otherwise srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Minute, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Clean(ctx, []byte("img"))
	require.Error(t, err)
}
