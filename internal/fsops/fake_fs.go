package fsops

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"sync"
)

type fakeKind int

const (
	fakeDir fakeKind = iota
	fakeFile
	fakeSymlink
	fakeOther
)

type fakeNode struct {
	kind     fakeKind
	size     int64
	children []string // listing order is insertion order
}

// FakeFileSystem implements FileSystem as an in-memory tree for testing.
// Paths are slash-separated and rooted at "/".
// Records all delete calls in Calls the same way for every outcome.
type FakeFileSystem struct {
	mu    sync.Mutex
	nodes map[string]*fakeNode
	fail  map[string]error // key: op + ":" + path

	Calls []string
}

// NewFakeFileSystem returns a fake holding only the root directory
func NewFakeFileSystem() *FakeFileSystem {
	return &FakeFileSystem{
		nodes: map[string]*fakeNode{"/": {kind: fakeDir}},
		fail:  make(map[string]error),
	}
}

// AddDir creates a directory and any missing parents
func (f *FakeFileSystem) AddDir(p string) *FakeFileSystem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(path.Clean(p), &fakeNode{kind: fakeDir})
	return f
}

// AddFile creates a regular file of the given size
func (f *FakeFileSystem) AddFile(p string, size int64) *FakeFileSystem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(path.Clean(p), &fakeNode{kind: fakeFile, size: size})
	return f
}

// AddSymlink creates a symbolic link; the target is never resolved
func (f *FakeFileSystem) AddSymlink(p string) *FakeFileSystem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(path.Clean(p), &fakeNode{kind: fakeSymlink})
	return f
}

// AddSpecial creates an entry that is neither a directory, a regular file nor a link
// (socket, pipe, device)
func (f *FakeFileSystem) AddSpecial(p string) *FakeFileSystem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(path.Clean(p), &fakeNode{kind: fakeOther})
	return f
}

func (f *FakeFileSystem) FailStat(p string, err error) *FakeFileSystem {
	return f.setFail("lstat", p, err)
}

func (f *FakeFileSystem) FailReadDir(p string, err error) *FakeFileSystem {
	return f.setFail("readdir", p, err)
}

func (f *FakeFileSystem) FailRemove(p string, err error) *FakeFileSystem {
	return f.setFail("remove", p, err)
}

func (f *FakeFileSystem) setFail(op, p string, err error) *FakeFileSystem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op+":"+path.Clean(p)] = err
	return f
}

// Has reports whether p exists in the tree
func (f *FakeFileSystem) Has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[path.Clean(p)]
	return ok
}

// Paths returns every path in the tree, parents before children, in listing order
func (f *FakeFileSystem) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	var walk func(p string)
	walk = func(p string) {
		out = append(out, p)
		for _, name := range f.nodes[p].children {
			walk(path.Join(p, name))
		}
	}
	walk("/")
	return out
}

func (f *FakeFileSystem) add(p string, n *fakeNode) {
	if p == "/" {
		return
	}
	parent := path.Dir(p)
	if _, ok := f.nodes[parent]; !ok {
		f.add(parent, &fakeNode{kind: fakeDir})
	}
	if _, ok := f.nodes[p]; !ok {
		f.nodes[parent].children = append(f.nodes[parent].children, path.Base(p))
	}
	f.nodes[p] = n
}

func (f *FakeFileSystem) injected(op, p string) error {
	if err, ok := f.fail[op+":"+p]; ok {
		return &fs.PathError{Op: op, Path: p, Err: err}
	}
	return nil
}

func (f *FakeFileSystem) Remove(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	f.Calls = append(f.Calls, "rm:"+p)

	if err := f.injected("remove", p); err != nil {
		return err
	}
	n, ok := f.nodes[p]
	if !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
	}
	if n.kind == fakeDir && len(n.children) > 0 {
		return &fs.PathError{Op: "remove", Path: p, Err: errors.New("directory not empty")}
	}

	delete(f.nodes, p)
	parent := f.nodes[path.Dir(p)]
	base := path.Base(p)
	for i, name := range parent.children {
		if name == base {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	return nil
}

func (f *FakeFileSystem) Exists(p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err := f.injected("lstat", p); err != nil {
		return false, err
	}
	_, ok := f.nodes[p]
	return ok, nil
}

func (f *FakeFileSystem) ReadDir(p string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err := f.injected("readdir", p); err != nil {
		return nil, err
	}
	n, ok := f.nodes[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	if n.kind != fakeDir {
		return nil, &fs.PathError{Op: "readdirent", Path: p, Err: errors.New("not a directory")}
	}
	return append([]string(nil), n.children...), nil
}

func (f *FakeFileSystem) Stat(p string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err := f.injected("lstat", p); err != nil {
		return Entry{}, err
	}
	n, ok := f.nodes[p]
	if !ok {
		return Entry{}, &fs.PathError{Op: "lstat", Path: p, Err: fs.ErrNotExist}
	}
	return Entry{
		Name:      path.Base(p),
		IsDir:     n.kind == fakeDir,
		IsRegular: n.kind == fakeFile,
		IsSymlink: n.kind == fakeSymlink,
		Size:      n.size,
	}, nil
}

func (f *FakeFileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}

func (f *FakeFileSystem) Resolve(base, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join("/", base, p)
}

// Rel mirrors filepath.Rel for slash paths
func (f *FakeFileSystem) Rel(base, target string) (string, error) {
	base = path.Join("/", base)
	target = path.Join("/", target)
	if base == target {
		return ".", nil
	}
	bp := splitPath(base)
	tp := splitPath(target)
	i := 0
	for i < len(bp) && i < len(tp) && bp[i] == tp[i] {
		i++
	}
	parts := make([]string, 0, len(bp)-i+len(tp)-i)
	for range bp[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, tp[i:]...)
	return strings.Join(parts, "/"), nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
