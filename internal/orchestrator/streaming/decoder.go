package streaming

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const maxFrameSize = 10 * 1024 * 1024

// Decoder reads progress events from an SSE body. Frames end at a blank
// line; only data: lines are used and malformed frames are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	data    strings.Builder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large task outputs
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next well-formed event, or io.EOF at the end of the body.
func (d *Decoder) Next() (v1.ProgressEvent, error) {
	for {
		ev, ok, err := d.frame()
		if err != nil {
			return v1.ProgressEvent{}, err
		}
		if ok {
			return ev, nil
		}
	}
}

// frame consumes one frame. ok is false for a frame that carried no valid event.
func (d *Decoder) frame() (ev v1.ProgressEvent, ok bool, err error) {
	d.data.Reset()
	sawLine := false
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if line == "" {
			if d.data.Len() == 0 {
				continue
			}
			return d.decode()
		}
		sawLine = true
		if strings.HasPrefix(line, "data:") {
			if d.data.Len() > 0 {
				d.data.WriteByte('\n')
			}
			d.data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := d.scanner.Err(); err != nil {
		return v1.ProgressEvent{}, false, err
	}
	// A final frame without its trailing blank line still counts.
	if sawLine && d.data.Len() > 0 {
		ev, ok, _ := d.decode()
		if ok {
			return ev, true, nil
		}
	}
	return v1.ProgressEvent{}, false, io.EOF
}

func (d *Decoder) decode() (v1.ProgressEvent, bool, error) {
	var ev v1.ProgressEvent
	if err := json.Unmarshal([]byte(d.data.String()), &ev); err != nil || ev.Type == "" {
		return v1.ProgressEvent{}, false, nil
	}
	return ev, true, nil
}
