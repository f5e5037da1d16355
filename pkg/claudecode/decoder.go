package claudecode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// maxLineSize bounds a single stream-json line; tool results can be large.
const maxLineSize = 10 * 1024 * 1024

// Decoder reads newline-delimited CLIMessage values.
type Decoder struct {
	scanner *bufio.Scanner
	skipped int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next message. Blank and non-JSON lines are skipped.
// It returns io.EOF once the reader is exhausted.
func (d *Decoder) Next() (*CLIMessage, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg CLIMessage
		if err := json.Unmarshal(line, &msg); err != nil || msg.Type == "" {
			d.skipped++
			continue
		}
		return &msg, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Skipped reports how many lines could not be decoded.
func (d *Decoder) Skipped() int {
	return d.skipped
}
