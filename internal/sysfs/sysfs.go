// Package sysfs gives bounded access to kernel pseudo-files (sysfs, procfs,
// device nodes) below a configurable root, so tests can point it at a
// temporary tree.
package sysfs

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/bmatcuk/doublestar/v4"
)

const DefaultTimeout = 2 * time.Second

type FS struct {
	root    string
	timeout time.Duration
}

func New(root string, timeout time.Duration) *FS {
	if root == "" {
		root = "/"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &FS{root: root, timeout: timeout}
}

func (s *FS) Root() string {
	return s.root
}

// Path resolves a root-relative path to a real filesystem path.
func (s *FS) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Exists reports whether rel can be stat'ed within the FS timeout.
func (s *FS) Exists(ctx context.Context, rel string) bool {
	p := s.Path(rel)
	_, err := s.bounded(ctx, func() ([]byte, error) {
		_, err := os.Stat(p)
		return nil, err
	})

	return err == nil
}

type result[T any] struct {
	val T
	err error
}

// within runs fn in its own goroutine and gives up after timeout.
// A hung kernel call leaks the goroutine but never the caller.
func within[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, errors.New().Wrap(ErrTimeout, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		val, err := fn()
		done <- result[T]{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, errors.New().Wrap(ErrTimeout, ctx.Err())
	}
}

func (s *FS) bounded(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	return within(ctx, s.timeout, fn)
}

func (s *FS) boundedList(ctx context.Context, fn func() ([]string, error)) ([]string, error) {
	return within(ctx, s.timeout, fn)
}

func (s *FS) ReadString(ctx context.Context, rel string) (string, error) {
	p := s.Path(rel)
	data, err := s.bounded(ctx, func() ([]byte, error) {
		return os.ReadFile(p)
	})
	if err != nil {
		if errors.HasCode(err, ErrTimeout) {
			return "", err
		}
		return "", errors.New().Wrap(ErrRead, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (s *FS) ReadInt(ctx context.Context, rel string) (int64, error) {
	str, err := s.ReadString(ctx, rel)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrParse, err)
	}

	return v, nil
}

func (s *FS) WriteString(ctx context.Context, rel, value string) error {
	p := s.Path(rel)
	_, err := s.bounded(ctx, func() ([]byte, error) {
		return nil, os.WriteFile(p, []byte(value), 0o644)
	})
	if err != nil && !errors.HasCode(err, ErrTimeout) {
		return errors.New().Wrap(ErrWrite, err)
	}

	return err
}

// WriteAt writes data at offset off of an existing file, as needed for
// register device nodes. The file is never created.
func (s *FS) WriteAt(ctx context.Context, rel string, data []byte, off int64) error {
	p := s.Path(rel)
	_, err := s.bounded(ctx, func() ([]byte, error) {
		f, err := os.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		_, err = f.WriteAt(data, off)
		return nil, err
	})
	if err != nil && !errors.HasCode(err, ErrTimeout) {
		return errors.New().Wrap(ErrWrite, err)
	}

	return err
}

// Glob returns root-relative slash paths matching pattern, in natural order
// (hwmon2 before hwmon10).
func (s *FS) Glob(ctx context.Context, pattern string) ([]string, error) {
	matches, err := s.boundedList(ctx, func() ([]string, error) {
		return doublestar.Glob(os.DirFS(s.root), strings.TrimPrefix(pattern, "/"))
	})
	if err != nil {
		if errors.HasCode(err, ErrTimeout) {
			return nil, err
		}
		return nil, errors.New().Wrap(ErrGlob, err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return naturalLess(matches[i], matches[j])
	})

	return matches, nil
}

// ReadDir lists entry names of a root-relative directory.
func (s *FS) ReadDir(ctx context.Context, rel string) ([]string, error) {
	names, err := s.boundedList(ctx, func() ([]string, error) {
		entries, err := fs.ReadDir(os.DirFS(s.root), strings.TrimPrefix(path.Clean(rel), "/"))
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names, nil
	})
	if err != nil {
		if errors.HasCode(err, ErrTimeout) {
			return nil, err
		}
		return nil, errors.New().Wrap(ErrRead, err)
	}

	sort.Slice(names, func(i, j int) bool {
		return naturalLess(names[i], names[j])
	})

	return names, nil
}

func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ra, rb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ra) && unicode.IsDigit(rb) {
			na, restA := leadingNumber(a)
			nb, restB := leadingNumber(b)
			if na != nb {
				return na < nb
			}
			a, b = restA, restB
			continue
		}
		if ra != rb {
			return ra < rb
		}
		a, b = a[1:], b[1:]
	}

	return len(a) < len(b)
}

func leadingNumber(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(s[:i])

	return n, s[i:]
}
