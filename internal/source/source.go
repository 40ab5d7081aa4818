// Package source discovers endpoint configuration files and fingerprints
// their contents so that changes can be detected cheaply.
//
// A source path is either a single YAML file or a directory. For a directory,
// every *.yaml and *.yml file directly inside it is part of the source, in
// lexical order. Subdirectories are ignored.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrNotYAML is returned when a file path does not carry a YAML extension.
var ErrNotYAML = errors.New("config file must have a .yaml or .yml extension")

// File is one configuration file read from a source path.
type File struct {
	Path string
	Data []byte
}

// IsYAML reports whether name has a YAML file extension.
func IsYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Paths lists the YAML files that make up the source at path.
//
// A directory without YAML files yields an empty list and no error.
func Paths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config source: %w", err)
	}

	if !info.IsDir() {
		if !IsYAML(path) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotYAML)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsYAML(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(path, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Read returns the contents of every file in the source at path.
func Read(path string) ([]File, error) {
	paths, err := Paths(path)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", p, err)
		}
		files = append(files, File{Path: p, Data: data})
	}
	return files, nil
}

// Fingerprint returns a hash of the file names and contents of the source.
//
// Adding, removing, renaming or editing any file changes the fingerprint.
// Touching a file without changing its bytes does not.
func Fingerprint(path string) (uint64, error) {
	files, err := Read(path)
	if err != nil {
		return 0, err
	}
	return Sum(files), nil
}

// Sum hashes already-read files. Order matters; [Read] returns a stable order.
func Sum(files []File) uint64 {
	d := xxhash.New()
	for _, f := range files {
		_, _ = d.WriteString(f.Path)
		_, _ = d.Write([]byte{0})
		_, _ = d.Write(f.Data)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
