package github_http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davarch/apt-publisher/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/solana-labs/solana/releases/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{
			"tag_name": "v1.18.22",
			"assets": [
				{"name": "solana-release-x86_64-unknown-linux-gnu.tar.bz2", "size": 42, "browser_download_url": "https://dl/x"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, "test")
	rel, err := c.LatestRelease(context.Background(), "solana-labs", "solana")
	require.NoError(t, err)
	require.Equal(t, "v1.18.22", rel.Tag)
	require.Len(t, rel.Assets, 1)
	require.Equal(t, int64(42), rel.Assets[0].Size)

	u, err := rel.AssetURL("solana-release-x86_64-unknown-linux-gnu.tar.bz2")
	require.NoError(t, err)
	require.Equal(t, "https://dl/x", u)
}

func TestLatestRelease_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, "").LatestRelease(context.Background(), "o", "r")

	var se *domain.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusForbidden, se.Code)
}

func TestDownload_StreamsToDisk(t *testing.T) {
	body := strings.Repeat("x", 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "1.0.0")
	path, err := New(srv.URL, time.Second, "").Download(context.Background(), srv.URL+"/a", dir, "a.tar.bz2")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a.tar.bz2"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, body, string(got))

	_, err = os.Stat(path + ".part")
	require.True(t, os.IsNotExist(err))
}

func TestDownload_NonSuccessLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := New(srv.URL, time.Second, "").Download(context.Background(), srv.URL, dir, "a.tar.bz2")

	var se *domain.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "download", se.Op)

	entries, _ := os.ReadDir(dir)
	require.Empty(t, entries)
}
