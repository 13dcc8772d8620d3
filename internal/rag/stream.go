package rag

import (
	"errors"
	"fmt"
)

// EventKind distinguishes stream events.
type EventKind int

const (
	EventToken EventKind = iota
	EventDone
	EventError
)

// Event is one message of an answer stream.
type Event struct {
	Kind EventKind
	// Token is the text fragment of an EventToken.
	Token string
	// Message is the user-facing text of an EventError.
	Message string
}

// EventSink delivers events to the client. An error means the client can no
// longer be reached.
type EventSink interface {
	Send(Event) error
}

// StreamState is the lifecycle of an answer stream.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamActive
	StreamSucceeded
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamActive:
		return "streaming"
	case StreamSucceeded:
		return "succeeded"
	case StreamFailed:
		return "failed"
	default:
		return fmt.Sprintf("stream_state(%d)", int(s))
	}
}

// Terminated reports whether no more events may be sent.
func (s StreamState) Terminated() bool {
	return s == StreamSucceeded || s == StreamFailed
}

// ErrStreamTerminated is returned for any event after the terminal one.
var ErrStreamTerminated = errors.New("stream already terminated")

// Stream enforces the event protocol: any number of tokens followed by
// exactly one done or error event.
type Stream struct {
	sink  EventSink
	state StreamState
}

// NewStream creates an idle stream writing to sink.
func NewStream(sink EventSink) *Stream {
	return &Stream{sink: sink}
}

// State returns the current state.
func (s *Stream) State() StreamState { return s.state }

// Token sends a text fragment. A failed write terminates the stream.
func (s *Stream) Token(text string) error {
	if s.state.Terminated() {
		return ErrStreamTerminated
	}
	return s.send(Event{Kind: EventToken, Token: text}, StreamActive)
}

// Done sends the success event.
func (s *Stream) Done() error {
	if s.state.Terminated() {
		return ErrStreamTerminated
	}
	return s.send(Event{Kind: EventDone}, StreamSucceeded)
}

// Fail sends the error event.
func (s *Stream) Fail(message string) error {
	if s.state.Terminated() {
		return ErrStreamTerminated
	}
	return s.send(Event{Kind: EventError, Message: message}, StreamFailed)
}

func (s *Stream) send(ev Event, next StreamState) error {
	if err := s.sink.Send(ev); err != nil {
		s.state = StreamFailed
		return fmt.Errorf("failed to send event: %w", err)
	}
	s.state = next
	return nil
}
