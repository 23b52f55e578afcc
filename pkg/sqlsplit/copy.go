package sqlsplit

import (
	"io"
	"strings"
)

// copySentinel is the line that terminates an inline COPY data section.
const copySentinel = `\.`

// copyReader streams the data lines of an inline COPY block. It is
// line-buffered: each Read drains previously buffered line bytes before
// pulling the next line from the underlying input. Blank lines are
// dropped, a trailing '\r' is stripped from every line, and the sentinel
// line terminates the section.
type copyReader struct {
	r        lineSource
	buf      []byte
	finished bool
	err      error
}

// lineSource is the minimal surface copyReader needs from bufio.Reader.
type lineSource interface {
	ReadString(delim byte) (string, error)
}

func (c *copyReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	for len(c.buf) == 0 {
		if c.finished {
			return 0, io.EOF
		}
		if err := c.fill(); err != nil {
			c.err = err
			return 0, err
		}
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// fill reads the next input line into the buffer, handling the sentinel
// and blank lines.
func (c *copyReader) fill() error {
	line, err := c.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	atEOF := err == io.EOF

	trimmed := strings.TrimSuffix(line, "\n")
	trimmed = strings.TrimSuffix(trimmed, "\r")

	switch {
	case trimmed == copySentinel:
		c.finished = true
	case atEOF:
		// Input ended before the sentinel line.
		return ErrUnterminatedCopy
	case strings.TrimSpace(trimmed) == "":
		// Blank lines are dropped without being sent.
	default:
		c.buf = append(c.buf[:0], trimmed...)
		c.buf = append(c.buf, '\n')
	}
	return nil
}
