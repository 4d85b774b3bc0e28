package dataset

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/banshee-data/scenario.report/internal/httputil"
	"github.com/banshee-data/scenario.report/internal/security"
)

const downloadTimeout = 30 * time.Second

// Download fetches one file from a URL into a cache directory, stored
// under the file name the URL path ends in. The cached copy persists
// across runs unless Force is set; Cleanup removes the cache directory.
type Download struct {
	URI   string
	Cache string
	// Force refetches even when the file is already cached.
	Force bool
	// Client defaults to a standard client with a request timeout.
	Client httputil.HTTPClient

	loaded bool
}

// NewDownload returns a download provider for uri caching into cacheDir.
func NewDownload(uri, cacheDir string) *Download {
	return &Download{URI: uri, Cache: cacheDir}
}

// Filename reports the name the download is stored under. Indirect URLs
// whose path does not end in a file name are rejected.
func (d *Download) Filename() (string, error) {
	u, err := url.Parse(d.URI)
	if err != nil {
		return "", fmt.Errorf("parse uri %s: %w", d.URI, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("uri %s does not name a file", d.URI)
	}
	return name, nil
}

// Resolve fetches the file if needed and returns its cached path.
func (d *Download) Resolve(name string) (string, error) {
	if err := d.Fetch(); err != nil {
		return "", err
	}
	p := filepath.Join(d.Cache, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("data path %s does not exist", p)
	}
	return p, nil
}

// Fetch downloads the file. Later calls are no-ops, as is the first
// when the file is already cached and Force is unset.
func (d *Download) Fetch() error {
	if d.loaded {
		return nil
	}
	name, err := d.Filename()
	if err != nil {
		return err
	}
	dest := filepath.Join(d.Cache, name)
	if !d.Force {
		if _, err := os.Stat(dest); err == nil {
			d.loaded = true
			return nil
		}
	}
	if err := os.MkdirAll(d.Cache, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := fetchFile(d.client(), d.URI, dest); err != nil {
		return err
	}
	d.loaded = true
	return nil
}

func (d *Download) client() httputil.HTTPClient {
	if d.Client != nil {
		return d.Client
	}
	return httputil.NewStandardClient(&http.Client{Timeout: downloadTimeout})
}

// Cleanup removes the cache directory and everything fetched into it.
func (d *Download) Cleanup() error {
	d.loaded = false
	return os.RemoveAll(d.Cache)
}

// fetchFile streams uri into dest through a temporary file, so an
// interrupted transfer never leaves a partial file at dest.
func fetchFile(client httputil.HTTPClient, uri, dest string) error {
	resp, err := client.Get(uri)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, dest)
}

// Zip serves members of a local zip archive, extracted into a cache
// directory on first use.
type Zip struct {
	Archive string
	Cache   string
	// Force re-extracts even when the cache directory is populated.
	Force bool

	loaded bool
}

// NewZip returns a provider over a local archive extracting into cacheDir.
func NewZip(archive, cacheDir string) *Zip {
	return &Zip{Archive: archive, Cache: cacheDir}
}

// Resolve extracts the archive if needed and returns the member's path.
func (z *Zip) Resolve(name string) (string, error) {
	if err := z.Fetch(); err != nil {
		return "", err
	}
	return resolveExtracted(z.Cache, name)
}

// Fetch extracts the archive. A populated cache directory counts as
// already extracted unless Force is set.
func (z *Zip) Fetch() error {
	if z.loaded {
		return nil
	}
	if !z.Force && dirPopulated(z.Cache) {
		z.loaded = true
		return nil
	}
	data, err := os.ReadFile(z.Archive)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	if err := extractZip(data, z.Cache); err != nil {
		return fmt.Errorf("extract %s: %w", z.Archive, err)
	}
	z.loaded = true
	return nil
}

// Cleanup removes the cache directory. The archive itself is kept.
func (z *Zip) Cleanup() error {
	z.loaded = false
	return os.RemoveAll(z.Cache)
}

// ZipDownload fetches a zip archive from a URL and extracts its members
// into a cache directory. The archive itself is never written to disk.
type ZipDownload struct {
	URI   string
	Cache string
	// Force refetches even when the cache directory is populated.
	Force bool
	// Client defaults to a standard client with a request timeout.
	Client httputil.HTTPClient

	loaded bool
}

// NewZipDownload returns a provider for the archive at uri extracting
// into cacheDir.
func NewZipDownload(uri, cacheDir string) *ZipDownload {
	return &ZipDownload{URI: uri, Cache: cacheDir}
}

// Resolve fetches and extracts the archive if needed and returns the
// member's path.
func (z *ZipDownload) Resolve(name string) (string, error) {
	if err := z.Fetch(); err != nil {
		return "", err
	}
	return resolveExtracted(z.Cache, name)
}

// Fetch downloads and extracts the archive. A populated cache directory
// counts as already fetched unless Force is set.
func (z *ZipDownload) Fetch() error {
	if z.loaded {
		return nil
	}
	if !z.Force && dirPopulated(z.Cache) {
		z.loaded = true
		return nil
	}
	resp, err := z.client().Get(z.URI)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", z.URI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", z.URI, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", z.URI, err)
	}
	if err := extractZip(data, z.Cache); err != nil {
		return fmt.Errorf("extract %s: %w", z.URI, err)
	}
	z.loaded = true
	return nil
}

func (z *ZipDownload) client() httputil.HTTPClient {
	if z.Client != nil {
		return z.Client
	}
	return httputil.NewStandardClient(&http.Client{Timeout: downloadTimeout})
}

// Cleanup removes the cache directory and everything extracted into it.
func (z *ZipDownload) Cleanup() error {
	z.loaded = false
	return os.RemoveAll(z.Cache)
}

func resolveExtracted(dir, name string) (string, error) {
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := security.ValidatePathWithinDirectory(p, dir); err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("data path %s does not exist", p)
	}
	return p, nil
}

func dirPopulated(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// extractZip unpacks an in-memory archive into dir, rejecting member
// names that would escape it.
func extractZip(data []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	for _, f := range zr.File {
		dest := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := security.ValidatePathWithinDirectory(dest, dir); err != nil {
			return fmt.Errorf("archive member %s: %w", f.Name, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive member %s: %w", f.Name, err)
		}
		out, err := os.Create(dest)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract member %s: %w", f.Name, err)
		}
	}
	return nil
}
