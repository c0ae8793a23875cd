// Package locator discovers configuration metadata descriptors reachable from
// a module's dependency closure.
package locator

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zip"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"go.uber.org/zap"
)

const (
	// DescriptorPath is where the annotation processor writes metadata
	DescriptorPath = "META-INF/spring-configuration-metadata.json"
	// AdditionalDescriptorPath is the hand-written supplement, used only
	// when DescriptorPath is absent in the same root.
	AdditionalDescriptorPath = "META-INF/additional-spring-configuration-metadata.json"
)

// projectOutputDirs are searched below project-owned roots, in order
var projectOutputDirs = []string{
	"",
	"build/classes/java/main",
	"build/resources/main",
	"target/classes",
}

// Kind classifies a dependency
type Kind int

const (
	// KindProject is a project-owned output or source directory
	KindProject Kind = iota
	// KindLibrary is a library archive or exploded library directory
	KindLibrary
)

// Dependency is one element of a module's dependency closure
type Dependency struct {
	ID   string
	Path string
	Kind Kind
}

// Document is a located descriptor
type Document struct {
	Dependency Dependency
	// Location is the file path, or a jar:file: URL for archive entries
	Location string
	// Archive and Entry are set for documents inside an archive
	Archive string
	Entry   string
	// Hash is the content hash used for de-duplication and caching
	Hash     string
	Size     int64
	Priority int
}

// Origin returns the metadata origin for catalogs parsed from d
func (d Document) Origin() metadata.Origin {
	kind := metadata.OriginLibrary
	if d.Dependency.Kind == KindProject {
		kind = metadata.OriginProject
	}
	return metadata.Origin{
		ID:       d.Dependency.ID,
		Kind:     kind,
		Location: d.Location,
		Priority: d.Priority,
	}
}

// Open opens the document content
func (d Document) Open() (io.ReadCloser, error) {
	return OpenLocation(d.Location)
}

// Locator enumerates descriptor documents
type Locator struct {
	logger *zap.Logger
}

// New creates a locator
func New(logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{logger: logger}
}

// Locate returns descriptor documents for deps, project dependencies first and
// otherwise in declaration order, with duplicate content dropped in favour of
// the earlier document. Unreadable dependencies are logged and skipped; the
// only error is context cancellation.
func (l *Locator) Locate(ctx context.Context, deps []Dependency) ([]Document, error) {
	ordered := make([]Dependency, len(deps))
	copy(ordered, deps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Kind < ordered[j].Kind
	})

	var docs []Document
	seen := make(map[string]string)
	for _, dep := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if dep.ID == "" {
			dep.ID = filepath.Base(dep.Path)
		}

		found, err := l.locateOne(dep)
		if err != nil {
			l.logger.Warn("skipping dependency",
				zap.String("dependency", dep.ID),
				zap.String("path", dep.Path),
				zap.Error(err))
			continue
		}

		for _, doc := range found {
			if first, dup := seen[doc.Hash]; dup {
				l.logger.Debug("skipping duplicate descriptor",
					zap.String("location", doc.Location),
					zap.String("duplicate_of", first))
				continue
			}
			seen[doc.Hash] = doc.Location
			doc.Priority = len(docs)
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func (l *Locator) locateOne(dep Dependency) ([]Document, error) {
	info, err := os.Stat(dep.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return l.locateDir(dep)
	}
	switch strings.ToLower(filepath.Ext(dep.Path)) {
	case ".jar", ".zip":
		return locateArchive(dep)
	case ".json":
		// A descriptor handed over directly, e.g. by a build plugin
		doc, err := fileDocument(dep, dep.Path)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	default:
		return nil, fmt.Errorf("unsupported dependency type: %s", dep.Path)
	}
}

func (l *Locator) locateDir(dep Dependency) ([]Document, error) {
	roots := []string{""}
	if dep.Kind == KindProject {
		roots = projectOutputDirs
	}

	var docs []Document
	for _, root := range roots {
		base := filepath.Join(dep.Path, root)
		for _, rel := range []string{DescriptorPath, AdditionalDescriptorPath} {
			path := filepath.Join(base, filepath.FromSlash(rel))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			doc, err := fileDocument(dep, path)
			if err != nil {
				l.logger.Warn("skipping unreadable descriptor", zap.String("path", path), zap.Error(err))
				continue
			}
			docs = append(docs, doc)
			break
		}
	}
	return docs, nil
}

// fileDocument hashes like an archive entry, CRC32 and size, so an exploded
// copy of a jar's descriptor de-duplicates against the jar
func fileDocument(dep Dependency, path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	sum := crc32.NewIEEE()
	size, err := io.Copy(sum, f)
	if err != nil {
		return Document{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return Document{
		Dependency: dep,
		Location:   path,
		Hash:       contentHash(sum.Sum32(), uint64(size)),
		Size:       size,
	}, nil
}

func locateArchive(dep Dependency) ([]Document, error) {
	r, err := zip.OpenReader(dep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var main, additional *zip.File
	for _, f := range r.File {
		switch f.Name {
		case DescriptorPath:
			main = f
		case AdditionalDescriptorPath:
			additional = f
		}
	}
	entry := main
	if entry == nil {
		entry = additional
	}
	if entry == nil {
		return nil, nil
	}

	abs, err := filepath.Abs(dep.Path)
	if err != nil {
		abs = dep.Path
	}
	// The central directory already carries the checksum, so the entry is
	// never decompressed here.
	return []Document{{
		Dependency: dep,
		Location:   archiveLocation(abs, entry.Name),
		Archive:    abs,
		Entry:      entry.Name,
		Hash:       contentHash(entry.CRC32, entry.UncompressedSize64),
		Size:       int64(entry.UncompressedSize64),
	}}, nil
}

func contentHash(crc uint32, size uint64) string {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[:4], crc)
	binary.LittleEndian.PutUint64(buf[4:], size)
	return strconv.FormatUint(xxhash.Sum64(buf[:]), 16)
}

// Identity computes the dependency-set identity of a located document list.
// Two lists with the same documents in the same order share an identity.
func Identity(docs []Document) string {
	h := xxhash.New()
	for _, d := range docs {
		_, _ = h.WriteString(d.Hash)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(d.Location)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(strconv.Itoa(int(d.Dependency.Kind)))
		_, _ = h.WriteString("\n")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// ParseClasspath splits an OS path list into dependencies of the given kind.
// Empty elements are dropped.
func ParseClasspath(classpath string, kind Kind) []Dependency {
	var deps []Dependency
	for _, p := range filepath.SplitList(classpath) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		deps = append(deps, Dependency{ID: filepath.Base(p), Path: p, Kind: kind})
	}
	return deps
}

// DescriptorDirs returns the directories whose contents decide which
// descriptors dep provides. Archives and descriptor files are represented by
// their parent directory so replacing the file is noticed. A META-INF
// directory that does not exist yet is represented by its nearest existing
// ancestor inside the dependency, so its creation is noticed too.
func DescriptorDirs(dep Dependency) []string {
	info, err := os.Stat(dep.Path)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return []string{filepath.Dir(dep.Path)}
	}
	roots := []string{""}
	if dep.Kind == KindProject {
		roots = projectOutputDirs
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, root := range roots {
		dir := nearestDir(dep.Path, filepath.Join(dep.Path, root, "META-INF"))
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// nearestDir walks up from dir to the first existing directory, stopping at
// base
func nearestDir(base, dir string) string {
	for dir != base {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return base
}
