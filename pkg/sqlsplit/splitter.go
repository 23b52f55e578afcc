// Package sqlsplit splits a stream of SQL text into discrete executable
// statements without building a parse tree. It understands single- and
// double-quoted regions with quote doubling, line and block comments,
// PostgreSQL dollar-quoted bodies, and COPY ... FROM STDIN data blocks.
//
// Input is consumed incrementally, so arbitrarily large scripts never
// need to reside in memory.
package sqlsplit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is the base error for input that ends inside an open
// quoting or comment region. Specific conditions wrap it, so callers can
// match with errors.Is(err, ErrMalformed).
var ErrMalformed = errors.New("malformed sql input")

var (
	// ErrUnterminatedQuote reports a quoted literal or identifier left
	// open at end of input.
	ErrUnterminatedQuote = fmt.Errorf("%w: unterminated quoted region", ErrMalformed)

	// ErrUnterminatedComment reports a block comment left open at end of input.
	ErrUnterminatedComment = fmt.Errorf("%w: unterminated block comment", ErrMalformed)

	// ErrUnterminatedDollarQuote reports a dollar-quoted body left open
	// at end of input.
	ErrUnterminatedDollarQuote = fmt.Errorf("%w: unterminated dollar-quoted body", ErrMalformed)

	// ErrUnterminatedCopy reports COPY data that ended without the
	// terminating sentinel line.
	ErrUnterminatedCopy = fmt.Errorf("%w: copy data did not terminate with \\.", ErrMalformed)
)

// ErrPendingCopyData is returned by Next when the previous statement was a
// COPY ... FROM STDIN whose inline data section has not been consumed via
// CopyData.
var ErrPendingCopyData = errors.New("sqlsplit: copy data section not consumed")

// mode is the lexer's active quoting/comment state. Exactly one mode is
// active at a time.
type mode int

const (
	modeNormal mode = iota
	modeSingleQuote
	modeSingleQuoteEnd // saw closing ' — next char decides doubled vs closed
	modeDoubleQuote
	modeDoubleQuoteEnd
	modeLineComment
	modeBlockComment
	modeDollarCandidate
	modeDollarQuote
)

// Splitter reads SQL text from r and yields one trimmed statement per call
// to Next, in input order. A Splitter is not safe for concurrent use.
type Splitter struct {
	r    *bufio.Reader
	stmt strings.Builder

	mode      mode
	dollarTag string          // active delimiter, e.g. "$body$"
	candidate strings.Builder // tag chars between the two '$' of a candidate
	prevStar  bool            // block comment: last char was '*'

	copy *copyReader // non-nil while a copy data section is pending
	done bool
}

// New returns a Splitter reading from r.
func New(r io.Reader) *Splitter {
	return &Splitter{r: bufio.NewReader(r)}
}

// Next returns the next non-empty statement, trimmed of surrounding
// whitespace. It returns io.EOF once the input is exhausted.
//
// When the returned statement is a COPY ... FROM STDIN (see IsCopyFromStdin),
// the caller must drain CopyData before calling Next again; the inline data
// lines are not statements and are never returned here.
func (s *Splitter) Next() (string, error) {
	if s.copy != nil && !s.copy.finished {
		return "", ErrPendingCopyData
	}
	s.copy = nil
	if s.done {
		return "", io.EOF
	}

	for {
		ch, _, err := s.r.ReadRune()
		if err == io.EOF {
			return s.finish()
		}
		if err != nil {
			return "", fmt.Errorf("read sql input: %w", err)
		}

		// A state transition either consumes the character or asks for it
		// to be reprocessed under the new mode.
		for {
			emitted, consumed, err := s.step(ch)
			if err != nil {
				return "", err
			}
			if emitted != "" {
				if IsCopyFromStdin(emitted) {
					s.copy = &copyReader{r: s.r}
				}
				return emitted, nil
			}
			if consumed {
				break
			}
		}
	}
}

// step feeds one character to the state machine. It returns the completed
// statement text when ch delimits a non-empty statement, and reports
// whether ch was consumed (false means: retry in the new mode).
func (s *Splitter) step(ch rune) (emitted string, consumed bool, err error) {
	switch s.mode {
	case modeSingleQuoteEnd:
		if ch == '\'' {
			// Doubled quote: stays inside the literal.
			s.stmt.WriteRune(ch)
			s.mode = modeSingleQuote
			return "", true, nil
		}
		s.mode = modeNormal
		return "", false, nil

	case modeDoubleQuoteEnd:
		if ch == '"' {
			s.stmt.WriteRune(ch)
			s.mode = modeDoubleQuote
			return "", true, nil
		}
		s.mode = modeNormal
		return "", false, nil

	case modeSingleQuote:
		s.stmt.WriteRune(ch)
		if ch == '\'' {
			s.mode = modeSingleQuoteEnd
		}
		return "", true, nil

	case modeDoubleQuote:
		s.stmt.WriteRune(ch)
		if ch == '"' {
			s.mode = modeDoubleQuoteEnd
		}
		return "", true, nil

	case modeLineComment:
		if ch == '\n' {
			s.mode = modeNormal
		}
		return "", true, nil

	case modeBlockComment:
		if s.prevStar && ch == '/' {
			s.mode = modeNormal
			s.prevStar = false
		} else {
			s.prevStar = ch == '*'
		}
		return "", true, nil

	case modeDollarCandidate:
		s.stmt.WriteRune(ch)
		switch {
		case ch == '$':
			s.dollarTag = "$" + s.candidate.String() + "$"
			s.candidate.Reset()
			s.mode = modeDollarQuote
		case isTagRune(ch):
			s.candidate.WriteRune(ch)
		default:
			// Not a dollar quote after all; the consumed characters are
			// ordinary statement content.
			s.candidate.Reset()
			s.mode = modeNormal
		}
		return "", true, nil

	case modeDollarQuote:
		s.stmt.WriteRune(ch)
		if ch == '$' && strings.HasSuffix(s.stmt.String(), s.dollarTag) {
			s.dollarTag = ""
			s.mode = modeNormal
		}
		return "", true, nil
	}

	// modeNormal.
	switch ch {
	case '-':
		ok, err := s.peekConsume('-')
		if err != nil {
			return "", true, err
		}
		if ok {
			s.mode = modeLineComment
			return "", true, nil
		}
	case '/':
		ok, err := s.peekConsume('*')
		if err != nil {
			return "", true, err
		}
		if ok {
			s.mode = modeBlockComment
			s.prevStar = true
			return "", true, nil
		}
	case '$':
		s.stmt.WriteRune(ch)
		s.mode = modeDollarCandidate
		return "", true, nil
	case '\'':
		s.stmt.WriteRune(ch)
		s.mode = modeSingleQuote
		return "", true, nil
	case '"':
		s.stmt.WriteRune(ch)
		s.mode = modeDoubleQuote
		return "", true, nil
	case ';':
		text := strings.TrimSpace(s.stmt.String())
		s.stmt.Reset()
		return text, true, nil
	}

	s.stmt.WriteRune(ch)
	return "", true, nil
}

// peekConsume consumes the next rune when it equals want.
func (s *Splitter) peekConsume(want rune) (bool, error) {
	next, _, err := s.r.ReadRune()
	if err == io.EOF {
		// Lone trailing '-' or '/' is ordinary content.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sql input: %w", err)
	}
	if next == want {
		return true, nil
	}
	if err := s.r.UnreadRune(); err != nil {
		return false, fmt.Errorf("unread sql input: %w", err)
	}
	return false, nil
}

// finish handles end of input: trailing text becomes a final statement as
// if terminated by ';'; an open quote, block comment, or dollar quote is a
// malformed-input failure.
func (s *Splitter) finish() (string, error) {
	s.done = true

	switch s.mode {
	case modeSingleQuote, modeDoubleQuote:
		return "", ErrUnterminatedQuote
	case modeBlockComment:
		return "", ErrUnterminatedComment
	case modeDollarQuote:
		return "", ErrUnterminatedDollarQuote
	}
	// A pending quote-end means the region did close; a line comment and a
	// dollar candidate terminate naturally at end of input.

	text := strings.TrimSpace(s.stmt.String())
	s.stmt.Reset()
	if text == "" {
		return "", io.EOF
	}
	if IsCopyFromStdin(text) {
		s.copy = &copyReader{r: s.r}
	}
	return text, nil
}

// CopyData returns a reader over the inline data section of the COPY
// statement most recently returned by Next. The reader yields the data
// lines (blank lines dropped, each followed by a single '\n') and reaches
// EOF at the sentinel line "\.". It fails with ErrUnterminatedCopy when
// the input ends before the sentinel.
//
// Calling CopyData when the last statement was not a COPY ... FROM STDIN
// returns a reader that fails immediately.
func (s *Splitter) CopyData() io.Reader {
	if s.copy == nil {
		return &copyReader{err: errors.New("sqlsplit: no copy data section pending")}
	}
	return s.copy
}

func isTagRune(ch rune) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
