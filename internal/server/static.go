package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

const indexFile = "index.html"

// publicFS is the part of the application directory clients may read.
// Dotfiles such as .env and .git are hidden, and directories are only
// served when they carry an index.html, so there are no listings.
type publicFS struct {
	root http.FileSystem
}

func newPublicFS(dir string) publicFS {
	return publicFS{root: http.Dir(dir)}
}

func (p publicFS) Open(name string) (http.File, error) {
	if hidden(name) {
		return nil, fs.ErrNotExist
	}
	f, err := p.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		index, err := p.root.Open(path.Join(name, indexFile))
		if err != nil {
			_ = f.Close()
			return nil, fs.ErrNotExist
		}
		_ = index.Close()
	}
	return f, nil
}

func hidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
