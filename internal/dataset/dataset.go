// Package dataset materializes trace sources as local files. A source
// is a plain path, a "builtin:<name>" synthetic fixture, a zip archive
// member, or an http(s) URL; anything fetched or generated lands in a
// cache directory the caller owns.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/scenario.report/internal/security"
)

// Provider materializes named data files under a local directory.
type Provider interface {
	// Resolve returns the local path for name, fetching or generating
	// the backing data on first use.
	Resolve(name string) (string, error)
	// Cleanup removes whatever the provider fetched or generated.
	// Providers over pre-existing local data keep their files.
	Cleanup() error
}

// memberSeparator splits an archive path from the member inside it:
// "bundle.zip!traces/drive.osi".
const memberSeparator = "!"

// IsLocal reports whether source is a plain filesystem path, with no
// scheme and no archive member. Callers use it to decide whether a
// relative source should be joined against a base directory.
func IsLocal(source string) bool {
	if strings.HasPrefix(source, builtinScheme) {
		return false
	}
	if hasHTTPScheme(source) {
		return false
	}
	return !strings.Contains(source, memberSeparator)
}

func hasHTTPScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Rebase joins dir onto the filesystem portion of a relative source:
// plain paths and local archive paths are joined, URLs and builtin
// names pass through unchanged.
func Rebase(source, dir string) string {
	if strings.HasPrefix(source, builtinScheme) || hasHTTPScheme(source) {
		return source
	}
	if archive, member, ok := strings.Cut(source, memberSeparator); ok {
		if !filepath.IsAbs(archive) {
			archive = filepath.Join(dir, archive)
		}
		return archive + memberSeparator + member
	}
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(dir, source)
}

// NewProvider picks the provider for a source and returns it together
// with the entry name to resolve:
//
//	builtin:straight-line            generated into cacheDir
//	https://host/traces/drive.osi    fetched into cacheDir
//	https://host/bundle.zip!a.osi    archive fetched, extracted under cacheDir
//	bundle.zip!a.osi                 local archive extracted under cacheDir
//	recordings/drive.osi             plain path, must already exist
//
// Extracted archives land in a subdirectory named after the archive, so
// members of different bundles cannot collide.
func NewProvider(source, cacheDir string) (Provider, string, error) {
	if name, ok := strings.CutPrefix(source, builtinScheme); ok {
		return NewBuiltin(cacheDir), name, nil
	}

	if archive, member, ok := strings.Cut(source, memberSeparator); ok {
		if member == "" {
			return nil, "", fmt.Errorf("source %s names no archive member", source)
		}
		cache := filepath.Join(cacheDir, archiveStem(archive))
		if hasHTTPScheme(archive) {
			return NewZipDownload(archive, cache), member, nil
		}
		return NewZip(archive, cache), member, nil
	}

	if hasHTTPScheme(source) {
		d := NewDownload(source, cacheDir)
		name, err := d.Filename()
		if err != nil {
			return nil, "", err
		}
		return d, name, nil
	}

	return NewDir(filepath.Dir(source)), filepath.Base(source), nil
}

// Resolve materializes a one-off source. Callers that need Cleanup or a
// custom HTTP client construct the provider through NewProvider instead.
func Resolve(source, cacheDir string) (string, error) {
	p, name, err := NewProvider(source, cacheDir)
	if err != nil {
		return "", err
	}
	return p.Resolve(name)
}

// archiveStem names the cache subdirectory for an archive: the file
// name without its extension, sanitized in case it came off a URL.
func archiveStem(archive string) string {
	base := filepath.Base(strings.TrimSuffix(archive, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return security.SanitizeFilename(stem)
}

// Dir serves files that already exist under a local directory.
type Dir struct {
	root string
}

// NewDir returns a provider over an existing directory.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Resolve returns the path of name inside the directory. The entry must
// exist and must not escape the directory.
func (d *Dir) Resolve(name string) (string, error) {
	p := filepath.Join(d.root, name)
	if err := security.ValidatePathWithinDirectory(p, d.root); err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("data path %s does not exist", p)
	}
	return p, nil
}

// Cleanup keeps local files in place.
func (d *Dir) Cleanup() error { return nil }
