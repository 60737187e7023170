package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeBlob(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "blob.pdf")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestScan_CleanVerdict(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-apikey")
		require.Equal(t, "/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		w.Write([]byte(`{"meta_info":{"total":0}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second)
	require.NoError(t, c.Scan(context.Background(), writeBlob(t, "%PDF- clean")))
	require.Equal(t, "test-key", gotKey)
}

func TestScan_PositiveDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta_info":{"total":3}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second)
	err := c.Scan(context.Background(), writeBlob(t, "%PDF- bad"))
	require.ErrorIs(t, err, ErrInfected)
}

func TestScan_FailsClosed(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		err := New(srv.URL, "", time.Second).Scan(context.Background(), writeBlob(t, "x"))
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()
		err := New(srv.URL, "", time.Second).Scan(context.Background(), writeBlob(t, "x"))
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused from here on
		err := New(srv.URL, "", time.Second).Scan(context.Background(), writeBlob(t, "x"))
		require.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestScan_MissingBlob(t *testing.T) {
	c := New("http://localhost:0", "", time.Second)
	err := c.Scan(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInfected)
}
