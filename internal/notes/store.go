package notes

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"paper-notes-app/internal/helpers"
)

const (
	DocumentFile  = "total.json"
	StructureFile = "structure.txt"
)

// Store reads and writes the notes directory. It keeps nothing in memory:
// every call goes back to disk, and concurrent writers race with the last
// one winning.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir (usually "notes").
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the notes directory.
func (s *Store) Dir() string {
	return s.dir
}

// DocumentPath returns the path of total.json.
func (s *Store) DocumentPath() string {
	return filepath.Join(s.dir, DocumentFile)
}

// StructurePath returns the path of structure.txt.
func (s *Store) StructurePath() string {
	return filepath.Join(s.dir, StructureFile)
}

// Read loads total.json and reports missing files and parse failures.
func (s *Store) Read() (*Collection, error) {
	data, err := os.ReadFile(s.DocumentPath())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", DocumentFile, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", DocumentFile, err)
	}
	return c, nil
}

// Load is the lenient Read: a missing or corrupt total.json becomes an empty
// collection so that writes are never blocked by it. Callers cannot tell the
// two cases apart.
func (s *Store) Load() *Collection {
	c, err := s.Read()
	if err != nil {
		log.Println("total.json missing or malformed, starting from an empty collection:", err)
		return NewCollection()
	}
	return c
}

// Save overwrites total.json with the indented collection.
func (s *Store) Save(c *Collection) error {
	data, err := c.Indented()
	if err != nil {
		return err
	}
	return s.writeFile(s.DocumentPath(), data)
}

// ReadStructure returns the contents of structure.txt.
func (s *Store) ReadStructure() (string, error) {
	data, err := os.ReadFile(s.StructurePath())
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", StructureFile, err)
	}
	return string(data), nil
}

// WriteStructure replaces structure.txt with text.
func (s *Store) WriteStructure(text string) error {
	return s.writeFile(s.StructurePath(), []byte(text))
}

// writeFile replaces path without ever leaving a truncated file behind.
func (s *Store) writeFile(path string, data []byte) error {
	return helpers.ReplaceFile(path, bytes.NewReader(data), 0)
}
