package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrProtectedPath     = errors.New("protected path")
	ErrContainsProtected = errors.New("sweep root contains protected path")
	ErrSymlinkEscape     = errors.New("symlink resolves into protected path")
)

// Validator decides whether a directory may be handed to the sweeper
type Validator struct {
	ProtectedPaths []string
}

// NewValidator creates a validator with the default protected set plus extras
func NewValidator(extraProtected []string) *Validator {
	return &Validator{
		ProtectedPaths: defaultProtected(normalizeRoots(extraProtected)),
	}
}

// ValidateSweepRoot refuses roots that are, live under, or contain a
// protected path. A root that does not exist yet is checked lexically only.
func (v *Validator) ValidateSweepRoot(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if err := v.check(p); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	resolved, err := ResolveSymlinks(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if resolved != p {
		if err := v.check(resolved); err != nil {
			return fmt.Errorf("%s -> %s: %w", p, resolved, ErrSymlinkEscape)
		}
	}
	return nil
}

func (v *Validator) check(p string) error {
	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}
	if ContainsProtectedPath(p, v.ProtectedPaths) {
		return ErrContainsProtected
	}
	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// ResolveSymlinks returns the absolute target of path after following links
func ResolveSymlinks(cleanAbs string) (string, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return "", err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolvedAbs), nil
}

// IsProtectedPath checks if path equals or lives under a protected path
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: "/" exact
	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// ContainsProtectedPath reports whether a recursive walk of path would
// reach a protected path
func ContainsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if prot == string(os.PathSeparator) {
			continue
		}
		if hasPathPrefix(prot, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
		"/var/lib/empty-sweep",
		"/etc/empty-sweep",
	}
	return append(base, extra...)
}
