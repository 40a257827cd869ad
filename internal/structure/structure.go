// Package structure renders the paper collection as an indented directory
// listing, grouping papers by their backslash separated file_address.
package structure

import (
	"strings"

	"paper-notes-app/internal/notes"
)

const (
	// SampleID is the example entry shipped in total.json. It is never listed.
	SampleID = "样例"
	// PlaceholderMarker marks a field the operator has not filled in yet.
	PlaceholderMarker = "请输入"

	indentUnit = "  "
)

// Entry is a paper that made it into the listing.
type Entry struct {
	PaperID string
	Dirs    []string
	Title   string
}

type dirNode struct {
	files    []string
	children []*dirNode
	name     string
	index    map[string]*dirNode
}

func newDirNode(name string) *dirNode {
	return &dirNode{name: name, index: make(map[string]*dirNode)}
}

func (n *dirNode) child(name string) *dirNode {
	if c, ok := n.index[name]; ok {
		return c
	}
	c := newDirNode(name)
	n.index[name] = c
	n.children = append(n.children, c)
	return c
}

// Generate builds the listing for every eligible paper in c.
func Generate(c *notes.Collection, includePlaceholder bool) string {
	return Render(Entries(c, includePlaceholder))
}

// Entries returns the papers that belong in the listing, in collection order.
func Entries(c *notes.Collection, includePlaceholder bool) []Entry {
	var entries []Entry
	for _, id := range c.IDs() {
		paper, _ := c.Get(id)
		if e, ok := entryFor(id, paper, includePlaceholder); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func entryFor(id string, paper notes.Paper, includePlaceholder bool) (Entry, bool) {
	if !paper.IsObject() || id == SampleID {
		return Entry{}, false
	}
	address, ok := paper.FileAddress()
	if !ok || address == "" {
		return Entry{}, false
	}
	title, ok := paper.Title()
	if !ok || title == "" {
		return Entry{}, false
	}

	address = strings.TrimSpace(address)
	title = strings.TrimSpace(title)
	if !includePlaceholder && (incomplete(address) || incomplete(title)) {
		return Entry{}, false
	}

	return Entry{PaperID: id, Dirs: SplitDirs(address), Title: title}, true
}

func incomplete(value string) bool {
	return value == "" || strings.Contains(value, PlaceholderMarker)
}

// SplitDirs returns the directory part of a backslash separated address.
// Blank segments are dropped and the last segment, the file itself, is not
// included.
func SplitDirs(address string) []string {
	var parts []string
	for _, part := range strings.Split(address, `\`) {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

// Render writes entries as a tree. Each level lists its titles first and then
// its subdirectories in the order they were first seen, indenting two spaces
// per level.
func Render(entries []Entry) string {
	root := newDirNode("")
	for _, e := range entries {
		level := root
		for _, dir := range e.Dirs {
			level = level.child(dir)
		}
		level.files = append(level.files, e.Title)
	}

	var b strings.Builder
	root.render(&b, 0)
	return b.String()
}

func (n *dirNode) render(b *strings.Builder, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	for _, f := range n.files {
		b.WriteString(indent)
		b.WriteString(f)
		b.WriteByte('\n')
	}
	for _, c := range n.children {
		b.WriteString(indent)
		b.WriteString(c.name)
		b.WriteByte('\n')
		c.render(b, depth+1)
	}
}
