// Package fd provides scoped ownership of OS file descriptors handed to child
// processes.
package fd

import (
	"fmt"
	"os"
)

// Handle owns at most one open file. The zero value is unset.
//
// A Handle is closed at most once: Close rewrites it to unset, so a second
// Close, or a Close after Release, is a no-op.
type Handle struct {
	f *os.File
}

// Own wraps an open file.
func Own(f *os.File) Handle {
	return Handle{f: f}
}

// Valid reports whether the handle currently owns an open file.
func (h *Handle) Valid() bool {
	return h != nil && h.f != nil
}

// File returns the owned file, or nil when unset.
func (h *Handle) File() *os.File {
	if h == nil {
		return nil
	}
	return h.f
}

// FileOr returns the owned file, or def when unset.
func (h *Handle) FileOr(def *os.File) *os.File {
	if h.Valid() {
		return h.f
	}
	return def
}

// Replace closes the currently owned file (if any) and takes ownership of f.
func (h *Handle) Replace(f *os.File) error {
	err := h.Close()
	h.f = f
	return err
}

// Release gives up ownership without closing and returns the file.
func (h *Handle) Release() *os.File {
	f := h.f
	h.f = nil
	return f
}

// Close closes the owned file and marks the handle unset.
func (h *Handle) Close() error {
	if h == nil || h.f == nil {
		return nil
	}
	f := h.f
	h.f = nil
	return f.Close()
}

func (h Handle) String() string {
	if h.f == nil {
		return "fd(unset)"
	}
	return fmt.Sprintf("fd(%s)", h.f.Name())
}

// Pipe creates an anonymous pipe. Both ends are close-on-exec, so only the
// descriptors explicitly passed to a child survive into it.
func Pipe() (r, w Handle, err error) {
	rf, wf, err := os.Pipe()
	if err != nil {
		return Handle{}, Handle{}, fmt.Errorf("pipe: %w", err)
	}
	return Own(rf), Own(wf), nil
}
