package fsops

// Deleter abstracts filesystem delete operations
// Enables fakes in tests to prove which paths a sweep removes
type Deleter interface {
	Remove(path string) error
}

// Entry is the metadata a sweep needs about one directory entry.
// Stat never follows symbolic links, so a link reports IsSymlink and nothing else.
type Entry struct {
	Name      string
	IsDir     bool
	IsRegular bool
	IsSymlink bool
	Size      int64
}

// FileSystem is the narrow filesystem capability consumed by the sweeper
type FileSystem interface {
	Deleter

	// Exists reports false with a nil error when path does not exist.
	Exists(path string) (bool, error)
	// ReadDir returns the names of the immediate entries of path in listing order.
	ReadDir(path string) ([]string, error)
	Stat(path string) (Entry, error)

	Join(elem ...string) string
	// Resolve returns p as an absolute, cleaned path; a relative p is taken from base.
	Resolve(base, p string) string
	Rel(base, target string) (string, error)
}
