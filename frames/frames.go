// Package frames filters backtraces produced by a host unwinder.
//
// Sources are pull-based and single-pass: every call to Next hands out the
// next frame or reports the end, and nothing is buffered beyond the frame
// being returned. A filtered source never materializes its input, so it is
// safe over arbitrarily deep or unbounded stacks.
package frames

import (
	"fmt"
	"iter"
	"strings"
)

type Frame struct {
	Level    int
	PC       uint64
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	if f.File == "" {
		return fmt.Sprintf("#%-3d %#016x in %s", f.Level, f.PC, f.Function)
	}
	return fmt.Sprintf("#%-3d %#016x in %s at %s:%d", f.Level, f.PC, f.Function, f.File, f.Line)
}

type Source interface {
	Next() (Frame, bool)
}

type SourceFunc func() (Frame, bool)

func (fn SourceFunc) Next() (Frame, bool) {
	return fn()
}

type filter struct {
	src      Source
	prefixes []string
	done     bool
}

// Filter returns a source yielding the frames of src whose file does not start
// with any of prefixes. A prefix also matches after any '/' in the path, so
// source-relative prefixes work on absolute paths.
func Filter(src Source, prefixes ...string) Source {
	return &filter{src: src, prefixes: prefixes}
}

func (f *filter) Next() (Frame, bool) {
	for !f.done {
		frame, ok := f.src.Next()
		if !ok {
			f.done = true
			break
		} else if !f.excluded(frame.File) {
			return frame, true
		}
	}
	return Frame{}, false
}

func (f *filter) excluded(file string) bool {
	for _, prefix := range f.prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(file, prefix) || strings.Contains(file, "/"+prefix) {
			return true
		}
	}
	return false
}

// Seq adapts src for range loops. The sequence shares src's position.
func Seq(src Source) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			frame, ok := src.Next()
			if !ok || !yield(frame) {
				return
			}
		}
	}
}

// FromSlice is a Source over a fixed backtrace.
func FromSlice(list []Frame) Source {
	var i int
	return SourceFunc(func() (Frame, bool) {
		if i >= len(list) {
			return Frame{}, false
		}
		i++
		return list[i-1], true
	})
}
