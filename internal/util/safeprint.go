package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// SafePrinter serializes all user-facing output so lines streamed from a
// transfer process never interleave with prompt output from another
// goroutine. It doubles as the line-oriented operation log: everything the
// core reports to the user goes through one of these.
type SafePrinter struct {
	mu        sync.Mutex
	out       io.Writer
	suspended bool
}

// Default is the shared SafePrinter used across the application.
var Default = NewSafePrinter(os.Stdout)

func NewSafePrinter(out io.Writer) *SafePrinter {
	return &SafePrinter{out: out}
}

// SetWriter redirects output, returning the previous writer. Tests use this
// to capture the operation log.
func (s *SafePrinter) SetWriter(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.out
	s.out = w
	return prev
}

func (s *SafePrinter) Printf(format string, a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprintf(s.out, format, a...)
}

func (s *SafePrinter) Println(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprintln(s.out, a...)
}

// Line prints one operation-log line, guaranteeing a trailing newline. Used
// for streamed transfer output where the source line may or may not carry
// its own terminator.
func (s *SafePrinter) Line(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprint(s.out, line)
	if !strings.HasSuffix(line, "\n") {
		fmt.Fprint(s.out, "\n")
	}
}

// Suspend mutes output while an interactive prompt owns the terminal.
func (s *SafePrinter) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

func (s *SafePrinter) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

// ClearLine clears the current line and returns the cursor to the beginning.
func (s *SafePrinter) ClearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprint(s.out, "\r\x1b[K")
}
