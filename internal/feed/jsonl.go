package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// JsonlSource reads frames from a JSONL stream, one frame object per line.
// Blank lines are skipped. This is also the replay format produced by
// recording a live feed.
type JsonlSource struct {
	closer  io.Closer
	scanner *bufio.Scanner
	line    int
	done    bool
}

// maxLineBytes bounds a single frame line. Embeddings dominate the size:
// a 512-dim float vector in JSON stays well under this.
const maxLineBytes = 1 << 20

// NewJsonlSource reads frames from r. The closer may be nil.
func NewJsonlSource(r io.Reader, closer io.Closer) *JsonlSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &JsonlSource{closer: closer, scanner: scanner}
}

// OpenJsonl opens a recorded frame file. The path "-" reads stdin.
func OpenJsonl(path string) (*JsonlSource, error) {
	if path == "-" {
		return NewJsonlSource(os.Stdin, nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open frame file: %w", err)
	}
	return NewJsonlSource(f, f), nil
}

// Next returns the next frame or ErrClosed at end of stream.
func (s *JsonlSource) Next() (Frame, error) {
	if s.done {
		return Frame{}, ErrClosed
	}
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}
		var w wireFrame
		if err := json.Unmarshal([]byte(text), &w); err != nil {
			return Frame{}, fmt.Errorf("could not parse frame on line %d: %w", s.line, err)
		}
		return w.decode(), nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("could not read frame stream: %w", err)
	}
	return Frame{}, ErrClosed
}

// Close closes the underlying file, if any.
func (s *JsonlSource) Close() error {
	s.done = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
