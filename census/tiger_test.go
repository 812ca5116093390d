package census

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTigerStub(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/tl_2020_53_tract.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchTracts(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"tl_2020_53_tract.shp": "shp-bytes",
		"tl_2020_53_tract.dbf": "dbf-bytes",
	})
	srv := newTigerStub(t, payload)
	destDir := t.TempDir()

	shpPath, err := FetchTracts(context.Background(), srv.URL+"/tl_2020_53_tract.zip", destDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "tl_2020_53_tract.shp"), shpPath)
	data, err := os.ReadFile(shpPath)
	require.NoError(t, err)
	assert.Equal(t, "shp-bytes", string(data))

	// Sidecar files are extracted alongside.
	_, err = os.Stat(filepath.Join(destDir, "tl_2020_53_tract.dbf"))
	assert.NoError(t, err)
}

func TestFetchTractsSkipsWhenExtracted(t *testing.T) {
	destDir := t.TempDir()
	shpPath := filepath.Join(destDir, "tl_2020_53_tract.shp")
	require.NoError(t, os.WriteFile(shpPath, []byte("existing"), 0o644))

	// The server would fail the test if hit; use an unreachable URL to
	// prove no download happens.
	got, err := FetchTracts(context.Background(), "http://127.0.0.1:1/tl_2020_53_tract.zip", destDir)
	require.NoError(t, err)
	assert.Equal(t, shpPath, got)
}

func TestFetchTractsDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err := FetchTracts(context.Background(), srv.URL+"/tl_2020_53_tract.zip", t.TempDir())
	assert.Error(t, err)
}

func TestFetchTractsMissingShp(t *testing.T) {
	payload := buildZip(t, map[string]string{"readme.txt": "no shapefile here"})
	srv := newTigerStub(t, payload)

	_, err := FetchTracts(context.Background(), srv.URL+"/tl_2020_53_tract.zip", t.TempDir())
	assert.Error(t, err)
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	payload := buildZip(t, map[string]string{"../escape.txt": "bad"})
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(zipPath, payload, 0o644))

	err := extractZip(zipPath, t.TempDir())
	assert.Error(t, err)
}
