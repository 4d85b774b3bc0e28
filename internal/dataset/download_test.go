package dataset

import (
	"archive/zip"
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/scenario.report/internal/httputil"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create member %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

func TestDownloadFetchesOnce(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "payload")

	d := NewDownload("https://example.com/data/drive.osi", t.TempDir())
	d.Client = mock

	p, err := d.Resolve("drive.osi")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("downloaded %q, want payload", data)
	}

	if _, err := d.Resolve("drive.osi"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if n := mock.RequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestDownloadUsesCachedFile(t *testing.T) {
	cache := t.TempDir()
	if err := os.WriteFile(filepath.Join(cache, "drive.osi"), []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := httputil.NewMockHTTPClient()
	d := NewDownload("https://example.com/data/drive.osi", cache)
	d.Client = mock

	p, err := d.Resolve("drive.osi")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "cached" {
		t.Errorf("resolved %q, want cached copy", data)
	}
	if n := mock.RequestCount(); n != 0 {
		t.Errorf("request count = %d, want 0", n)
	}
}

func TestDownloadForceRefetches(t *testing.T) {
	cache := t.TempDir()
	if err := os.WriteFile(filepath.Join(cache, "drive.osi"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "fresh")
	d := NewDownload("https://example.com/data/drive.osi", cache)
	d.Client = mock
	d.Force = true

	p, err := d.Resolve("drive.osi")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "fresh" {
		t.Errorf("resolved %q, want refetched copy", data)
	}
	if n := mock.RequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestDownloadHTTPError(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusNotFound, "nope")

	cache := t.TempDir()
	d := NewDownload("https://example.com/data/drive.osi", cache)
	d.Client = mock

	_, err := d.Resolve("drive.osi")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("error = %v, want status 404", err)
	}
	if _, err := os.Stat(filepath.Join(cache, "drive.osi")); err == nil {
		t.Error("failed download left a file behind")
	}
}

func TestDownloadCleanup(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "payload")

	cache := filepath.Join(t.TempDir(), "download")
	d := NewDownload("https://example.com/data/drive.osi", cache)
	d.Client = mock

	if _, err := d.Resolve("drive.osi"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := d.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(cache); !os.IsNotExist(err) {
		t.Errorf("cache dir still present after cleanup: %v", err)
	}
}

func TestZipDownloadExtracts(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"traces/a.osi": "alpha",
		"readme.txt":   "docs",
	})

	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, string(archive))

	cache := filepath.Join(t.TempDir(), "bundle")
	z := NewZipDownload("https://example.com/bundle.zip", cache)
	z.Client = mock

	p, err := z.Resolve("traces/a.osi")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(data) != "alpha" {
		t.Errorf("member = %q, want alpha", data)
	}

	// A fresh provider over the populated cache needs no network.
	idle := httputil.NewMockHTTPClient()
	z2 := NewZipDownload("https://example.com/bundle.zip", cache)
	z2.Client = idle
	if _, err := z2.Resolve("readme.txt"); err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if n := idle.RequestCount(); n != 0 {
		t.Errorf("request count = %d, want 0", n)
	}
}

func TestZipDownloadMissingMember(t *testing.T) {
	archive := zipBytes(t, map[string]string{"a.osi": "alpha"})

	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, string(archive))

	z := NewZipDownload("https://example.com/bundle.zip", filepath.Join(t.TempDir(), "bundle"))
	z.Client = mock

	_, err := z.Resolve("b.osi")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("missing member error = %v", err)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	archive := zipBytes(t, map[string]string{"../evil.txt": "bad"})

	parent := t.TempDir()
	cache := filepath.Join(parent, "bundle")

	if err := extractZip(archive, cache); err == nil {
		t.Error("expected traversal member to be rejected")
	}
	if _, err := os.Stat(filepath.Join(parent, "evil.txt")); err == nil {
		t.Error("traversal member was written outside the cache")
	}
}

func TestLocalZipExtracts(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bundle.zip")
	if err := os.WriteFile(archivePath, zipBytes(t, map[string]string{"a.osi": "alpha"}), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := filepath.Join(dir, "extracted")
	z := NewZip(archivePath, cache)

	p, err := z.Resolve("a.osi")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "alpha" {
		t.Errorf("member = %q, want alpha", data)
	}

	if err := z.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(cache); !os.IsNotExist(err) {
		t.Error("cleanup kept the extraction dir")
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Errorf("cleanup removed the archive itself: %v", err)
	}
}

func TestResolveArchiveMemberSource(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bundle.zip")
	if err := os.WriteFile(archivePath, zipBytes(t, map[string]string{"a.osi": "alpha"}), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := t.TempDir()
	p, err := Resolve(archivePath+"!a.osi", cache)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(cache, "bundle", "a.osi"); p != want {
		t.Errorf("resolved %q, want %q", p, want)
	}
}
