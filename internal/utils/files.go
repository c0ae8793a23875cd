package utils

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
)

// SkipDirs are never searched for configuration files
var SkipDirs = map[string]bool{
	".git":         true,
	".gradle":      true,
	".idea":        true,
	"build":        true,
	"target":       true,
	"node_modules": true,
	"out":          true,
}

// FindConfigFiles expands directories into the application*.properties and
// application*.yml files below them, sorted and without duplicates. Named
// files are kept even if their name is not recognised so the caller hears
// about them.
func FindConfigFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			// Skip build output and tool directories below the root
			if d.IsDir() {
				if path != abs && SkipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}

			if configfile.IsSpringConfig(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}
