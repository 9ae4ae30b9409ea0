// Package sse reads line-framed `data: <payload>` event streams.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const defaultBufferSize = 16 * 1024

var dataPrefix = []byte("data:")

// Scanner yields the payload of every `data:` line of a stream. Lines are
// buffered until their terminating newline arrives, so a frame split across
// several reads is reassembled before it is returned. Any other line
// (comments, event names, blank separators) is skipped.
type Scanner struct {
	reader *bufio.Reader
	data   []byte
	err    error
	lines  int
}

// NewScanner creates a scanner over r
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReaderSize(r, defaultBufferSize),
	}
}

// Scan advances to the next data line. It returns false when the stream ends
// or fails; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			// A final line without a trailing newline still counts once the
			// server has closed the connection.
			if payload, ok := parseLine(line); ok {
				s.data = payload
				s.lines++
				if err != nil {
					s.err = err
				}
				return true
			}
		}
		if err != nil {
			s.err = err
			return false
		}
	}
}

// Data returns the payload of the current data line
func (s *Scanner) Data() []byte {
	return s.data
}

// Lines returns how many data lines were read so far
func (s *Scanner) Lines() int {
	return s.lines
}

// Err returns the first non-EOF error encountered
func (s *Scanner) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

func parseLine(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	payload := bytes.TrimPrefix(line, dataPrefix)
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, false
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true
}
