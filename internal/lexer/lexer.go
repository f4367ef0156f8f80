// Package lexer provides the low-level character-stream scanning
// primitives internal/parser builds its recursive-descent grammar on.
// The source language's grammar is whitespace- and newline-sensitive
// in the way the original compiler's hand-written scanner treats it,
// so this package exposes the same small set of primitives (skip,
// expect, read-while) rather than producing a conventional token
// stream.
package lexer

import (
	"bufio"
	"fmt"
	"io"
)

// Error is a lexical/structural scanning failure: an unexpected
// character, an unterminated word, or EOF where more input was
// required. internal/parser wraps these (and its own grammar errors)
// uniformly as parser errors.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// Scanner reads the source program one byte at a time. It never
// backtracks past the most recent Peek; every production in
// internal/parser consumes bytes it has already looked at.
type Scanner struct {
	r    *bufio.Reader
	line int
}

// New returns a Scanner reading from r.
func New(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r), line: 1}
}

// Line returns the 1-based input line the scanner is currently
// positioned at, for error messages.
func (s *Scanner) Line() int { return s.line }

// Peek returns the next unconsumed byte without consuming it, or 0 at
// EOF.
func (s *Scanner) Peek() byte {
	b, err := s.r.Peek(1)
	if err != nil {
		return 0
	}
	return b[0]
}

// Next consumes and returns the next byte, or 0 at EOF.
func (s *Scanner) Next() byte {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0
	}
	if b == '\n' {
		s.line++
	}
	return b
}

// PeekN returns up to n unconsumed bytes without consuming them. The
// returned string may be shorter than n at EOF.
func (s *Scanner) PeekN(n int) string {
	b, _ := s.r.Peek(n)
	return string(b)
}

// AtEOF reports whether the scanner has no more input.
func (s *Scanner) AtEOF() bool {
	_, err := s.r.Peek(1)
	return err != nil
}

// SkipWhile consumes bytes while pred holds, returning the count
// skipped.
func (s *Scanner) SkipWhile(pred func(byte) bool) int {
	n := 0
	for pred(s.Peek()) && !s.AtEOF() {
		s.Next()
		n++
	}
	return n
}

// SkipSpaces skips spaces and tabs.
func (s *Scanner) SkipSpaces() int {
	return s.SkipWhile(func(b byte) bool { return b == ' ' || b == '\t' })
}

// SkipSpacesAndNewlines skips spaces, tabs, carriage returns and
// newlines.
func (s *Scanner) SkipSpacesAndNewlines() int {
	return s.SkipWhile(func(b byte) bool {
		return b == ' ' || b == '\t' || b == '\r' || b == '\n'
	})
}

// ReadWhile consumes and returns the longest run of bytes satisfying
// pred.
func (s *Scanner) ReadWhile(pred func(byte) bool) string {
	var buf []byte
	for pred(s.Peek()) && !s.AtEOF() {
		buf = append(buf, s.Next())
	}
	return string(buf)
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

// IsAlpha, IsUpper, IsDigit, IsAlnum are exported predicates for
// internal/parser's ReadWhile calls.
var (
	IsAlpha = isAlpha
	IsUpper = isUpper
	IsDigit = isDigit
	IsAlnum = isAlnum
)

// ExpectChar consumes the next byte and requires it to equal want,
// returning an *Error describing ctx on mismatch.
func (s *Scanner) ExpectChar(want byte, ctx string) error {
	got := s.Next()
	if got != want {
		return &Error{Msg: fmt.Sprintf("line %d: expected %q, got %q. Context: %s", s.line, want, got, ctx)}
	}
	return nil
}

// ExpectWord consumes len(word) bytes and requires them to equal
// word.
func (s *Scanner) ExpectWord(word, ctx string) error {
	for i := 0; i < len(word); i++ {
		if err := s.ExpectChar(word[i], ctx); err != nil {
			return &Error{Msg: fmt.Sprintf("line %d: expected %q. Context: %s", s.line, word, ctx)}
		}
	}
	return nil
}
