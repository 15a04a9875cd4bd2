// Package edc implements the decision-loop boundary of the external decision
// component: initialise once, take decisions many times, deinitialise once.
package edc

import (
	"github.com/pkg/errors"

	"github.com/bhhoang/enersched/internal/edc/protocol"
	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/engine"
)

// Format flags accepted by Init. Binary and JSON are mutually exclusive.
const (
	FormatBinary uint32 = 0x1
	FormatJSON   uint32 = 0x2
)

var (
	// ErrUnknownFormat is returned when flags carry unrecognised bits or no
	// format bit at all.
	ErrUnknownFormat = errors.New("unknown format flags")
	// ErrBinaryUnsupported is returned when the binary format is requested;
	// this build carries only the JSON codec.
	ErrBinaryUnsupported = errors.New("binary format is not supported by this build")
	// ErrSessionClosed is returned by calls on a deinitialised session.
	ErrSessionClosed = errors.New("session has been deinitialised")
)

// Session holds all state of one simulation. It is not safe for concurrent
// use; the simulator drives it from a single synchronous loop.
type Session struct {
	engine *engine.Engine
	// out is the last encoded decision batch; it stays valid until the next
	// TakeDecisions or Deinit call.
	out    []byte
	closed bool
}

// Init creates a session from the opaque configuration blob and format flags.
func Init(data []byte, flags uint32) (*Session, error) {
	if flags&^(FormatBinary|FormatJSON) != 0 || flags == 0 {
		return nil, errors.Wrapf(ErrUnknownFormat, "flags 0x%x", flags)
	}
	if flags&FormatBinary != 0 {
		if flags&FormatJSON != 0 {
			return nil, errors.Wrap(ErrUnknownFormat, "binary and json formats are mutually exclusive")
		}
		return nil, errors.WithStack(ErrBinaryUnsupported)
	}

	config, err := configuration.Load(data)
	if err != nil {
		return nil, err
	}
	return &Session{engine: engine.New(config)}, nil
}

// TakeDecisions runs one tick: it decodes the event batch, drives the engine,
// and returns the encoded decision batch. The returned buffer remains valid
// until the next call or Deinit. A non-nil error instructs the simulator to
// abort.
func (s *Session) TakeDecisions(in []byte) ([]byte, error) {
	if s.closed {
		return nil, errors.WithStack(ErrSessionClosed)
	}
	now, events, err := protocol.Decode(in)
	if err != nil {
		return nil, err
	}
	decisions, err := s.engine.HandleBatch(now, events)
	if err != nil {
		return nil, err
	}
	out, err := protocol.Encode(now, decisions)
	if err != nil {
		return nil, err
	}
	s.out = out
	return s.out, nil
}

// Snapshot exposes engine state for observability.
func (s *Session) Snapshot() engine.Snapshot {
	return s.engine.Snapshot()
}

// Deinit releases all session state. The session cannot be used afterwards.
func (s *Session) Deinit() error {
	if s.closed {
		return errors.WithStack(ErrSessionClosed)
	}
	s.closed = true
	s.engine = nil
	s.out = nil
	return nil
}
