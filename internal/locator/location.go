package locator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const jarScheme = "jar:file:"

func archiveLocation(archive, entry string) string {
	return jarScheme + filepath.ToSlash(archive) + "!/" + entry
}

// SplitLocation splits a jar:file: location into archive path and entry. For
// plain paths it returns the path and an empty entry.
func SplitLocation(location string) (archive, entry string) {
	if !strings.HasPrefix(location, jarScheme) {
		return location, ""
	}
	rest := strings.TrimPrefix(location, jarScheme)
	i := strings.LastIndex(rest, "!/")
	if i < 0 {
		return filepath.FromSlash(rest), ""
	}
	return filepath.FromSlash(rest[:i]), rest[i+2:]
}

// OpenLocation opens a descriptor by location, reading through the archive
// for jar:file: locations.
func OpenLocation(location string) (io.ReadCloser, error) {
	archive, entry := SplitLocation(location)
	if entry == "" {
		return os.Open(archive)
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	for _, f := range r.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open %s in %s: %w", entry, archive, err)
		}
		return &archiveEntry{ReadCloser: rc, archive: r}, nil
	}
	r.Close()
	return nil, fmt.Errorf("entry %s not found in %s: %w", entry, archive, os.ErrNotExist)
}

// archiveEntry closes the owning archive along with the entry
type archiveEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (a *archiveEntry) Close() error {
	err := a.ReadCloser.Close()
	if cerr := a.archive.Close(); err == nil {
		err = cerr
	}
	return err
}
