package modelbuilder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source supplies the bytes of one POM
type Source interface {
	// Location identifies the source in problems and cache keys
	Location() string
	Open() (io.ReadCloser, error)
}

// FileBacked is implemented by sources that are a POM in a local project
// directory. Only such sources take part in relativePath parent lookup and
// module discovery.
type FileBacked interface {
	File() string
}

// FileSource reads a POM from a project directory
type FileSource struct {
	Path string
}

// NewFileSource creates a source for a POM file or a directory holding pom.xml
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: LocatePOM(path)}
}

func (s *FileSource) Location() string { return s.Path }

func (s *FileSource) File() string { return s.Path }

func (s *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// ArtifactSource reads a POM resolved from a repository. It has no project
// directory, so it is identified by its coordinates.
type ArtifactSource struct {
	Path        string
	Coordinates string
}

func (s *ArtifactSource) Location() string { return s.Coordinates }

func (s *ArtifactSource) Open() (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// StringSource serves an in-memory POM
type StringSource struct {
	Content string
	Name    string
}

func (s *StringSource) Location() string {
	if s.Name == "" {
		return "(memory)"
	}
	return s.Name
}

func (s *StringSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.Content)), nil
}

// LocatePOM returns the absolute, cleaned form of path, with pom.xml appended
// when path is a directory. Reactor files are identified by this form.
func LocatePOM(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	} else {
		path = filepath.Clean(path)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, "pom.xml")
	}
	return path
}

// cacheKey identifies the current contents of a source, empty when the source
// cannot be cached
func cacheKey(src Source) string {
	var path string
	switch s := src.(type) {
	case *FileSource:
		path = s.Path
	case *ArtifactSource:
		path = s.Path
	default:
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s@%d:%d", path, info.ModTime().UnixNano(), info.Size())
}
