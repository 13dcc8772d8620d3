package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Event is one decoded "data:" payload of an answer stream.
type Event struct {
	Token *string `json:"token,omitempty"`
	Done  bool    `json:"done,omitempty"`
	Error string  `json:"error,omitempty"`
}

var errDone = errors.New("done")

const maxEventBytes = 1 << 20

// ReadEvents decodes server-sent events from r and calls fn for each. It
// stops at the end of input or at the first error fn returns. Lines other
// than "data:" fields are ignored; multi-line data is joined with "\n".
func ReadEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventBytes)

	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			return nil
		}
		raw := strings.Join(data, "\n")
		data = data[:0]

		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return fmt.Errorf("failed to decode event %q: %w", raw, err)
		}
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return dispatch()
}
