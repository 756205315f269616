// Package tlv implements the length-prefixed tag/length/value framing
// (spec.md §4.I) carried over a stage.Stage, grounded on
// original_source/src/tlv.cpp: a 4-byte header (2-byte tag, 2-byte length)
// followed by up to 65535 bytes of value, with four reserved control tags
// (start, check, end, error) plus a log-range reserved for out-of-band
// carriage (see log.go).
package tlv

import (
	"strconv"

	"go.uber.org/atomic"

	"github.com/quietloop/vaultpipe/internal/coreerr"
	"github.com/quietloop/vaultpipe/stage"
)

// Reserved tags, matching tlv.cpp's enum.
const (
	StartTag uint16 = 65530
	CheckTag uint16 = 65531
	EndTag   uint16 = 65532
	ErrorTag uint16 = 65533

	// LogRangeStart is the first of ten tags (65520-65529) reserved for
	// log-range carriage; see log.go.
	LogRangeStart uint16 = 65520
	LogRangeEnd   uint16 = 65529
)

// MaxLength is the largest value a single record may carry.
const MaxLength = 0xffff

// Type classifies a received record.
type Type int

const (
	ErrorType Type = -1
	EndType   Type = 0
	StartType Type = 1
	CheckType Type = 2
	DataType  Type = 3
)

// Record is one decoded TLV frame.
type Record struct {
	Type  Type
	Tag   uint16
	Value []byte
	// ErrNo holds the decimal payload of an ErrorType record, parsed from
	// Value, mirroring the source's reuse of the length output parameter to
	// carry the error number for ERROR_TAG.
	ErrNo int32
}

// Sender writes a sequence of framed messages to fd. A Sender is not safe
// for concurrent use — exactly one goroutine may drive a message at a time,
// matching every other stage-chain component in this module.
type Sender struct {
	fd      stage.Stage
	started atomic.Bool
	failed  atomic.Bool
}

// NewSender wraps fd (already Open) for TLV writing.
func NewSender(fd stage.Stage) *Sender {
	return &Sender{fd: fd}
}

// Start begins a new message. Calling Start while already started is a
// protocol error and latches failure. On success, Start resets any
// previously-latched failure — exactly as tlv.cpp's start() reassigns
// _failed from its own write's outcome rather than OR-ing it in, letting a
// Sender be reused for a fresh message after a prior one failed.
func (s *Sender) Start() error {
	if s.started.Load() {
		s.failed.Store(true)
		return coreerr.New(coreerr.Protocol, "tlv.start")
	}
	s.started.Store(true)
	err := s.writeRaw(StartTag, nil)
	s.failed.Store(err != nil)
	return err
}

// Check asks the other end to acknowledge liveness within the current
// message. Like Start, success resets any previously-latched failure.
func (s *Sender) Check() error {
	if !s.started.Load() {
		s.failed.Store(true)
		return coreerr.New(coreerr.InvalidUse, "tlv.check")
	}
	err := s.writeRaw(CheckTag, nil)
	s.failed.Store(err != nil)
	return err
}

// Write adds one tagged value to the current message. Unlike Start/Check, a
// failure here latches permanently until the next successful Start — the
// caller is expected to batch writes within a message and check the error
// returned by End, not every intermediate Write.
func (s *Sender) Write(tag uint16, buf []byte) error {
	if !s.started.Load() {
		s.failed.Store(true)
		return coreerr.New(coreerr.InvalidUse, "tlv.write")
	}
	if len(buf) > MaxLength {
		s.failed.Store(true)
		return coreerr.New(coreerr.Protocol, "tlv.write")
	}
	if err := s.writeRaw(tag, buf); err != nil {
		s.failed.Store(true)
		return err
	}
	return nil
}

// WriteNumber is a convenience for the source's write(tag, int32_t) overload:
// the number is carried as its decimal ASCII representation.
func (s *Sender) WriteNumber(tag uint16, n int32) error {
	return s.Write(tag, []byte(strconv.FormatInt(int64(n), 10)))
}

// End terminates the current message. It returns the message's latched
// failure, if any, even if End's own frame write succeeds.
func (s *Sender) End() error {
	if !s.started.Load() {
		s.failed.Store(true)
		return coreerr.New(coreerr.InvalidUse, "tlv.end")
	}
	if err := s.writeRaw(EndTag, nil); err != nil {
		s.failed.Store(true)
	}
	s.started.Store(false)
	if s.failed.Load() {
		return coreerr.New(coreerr.Protocol, "tlv.end")
	}
	return nil
}

// Error terminates the current message with an error tag carrying errNo,
// and returns the message's latched failure, if any.
func (s *Sender) Error(errNo int32) error {
	if !s.started.Load() {
		s.failed.Store(true)
		return coreerr.New(coreerr.InvalidUse, "tlv.error")
	}
	if err := s.writeRaw(ErrorTag, []byte(strconv.FormatInt(int64(errNo), 10))); err != nil {
		s.failed.Store(true)
	}
	s.started.Store(false)
	if s.failed.Load() {
		return coreerr.New(coreerr.Protocol, "tlv.error")
	}
	return nil
}

func (s *Sender) writeRaw(tag uint16, buf []byte) error {
	length := len(buf)
	header := [4]byte{
		byte(tag >> 8), byte(tag),
		byte(length >> 8), byte(length),
	}
	if n, err := s.fd.Put(header[:]); err != nil || n < len(header) {
		return coreerr.Wrap(coreerr.IO, "tlv.write.header", err)
	}
	if length == 0 {
		return nil
	}
	if n, err := s.fd.Put(buf); err != nil || n < length {
		return coreerr.Wrap(coreerr.IO, "tlv.write.value", err)
	}
	return nil
}

// Receiver reads a sequence of framed messages from fd. Not safe for
// concurrent use.
type Receiver struct {
	fd stage.Stage
}

// NewReceiver wraps fd (already Open) for TLV reading.
func NewReceiver(fd stage.Stage) *Receiver {
	return &Receiver{fd: fd}
}

// Receive reads one frame. A clean close before any header bytes arrive is
// reported as coreerr.Flushed (mirroring the source's rc==0 "connection
// closed by sender" case); a short read anywhere else is coreerr.Protocol
// or coreerr.IO.
func (r *Receiver) Receive() (Record, error) {
	var header [4]byte
	n, err := r.fd.Get(header[:])
	if err != nil {
		return Record{}, coreerr.Wrap(coreerr.IO, "tlv.receive.header", err)
	}
	if n < len(header) {
		if n == 0 {
			return Record{}, coreerr.New(coreerr.Flushed, "tlv.receive.header")
		}
		return Record{}, coreerr.New(coreerr.Protocol, "tlv.receive.header")
	}

	tag := uint16(header[0])<<8 | uint16(header[1])
	length := int(uint16(header[2])<<8 | uint16(header[3]))

	var value []byte
	if length > 0 {
		value = make([]byte, length)
		n, err = r.fd.Get(value)
		if err != nil {
			return Record{}, coreerr.Wrap(coreerr.IO, "tlv.receive.value", err)
		}
		if n < length {
			return Record{}, coreerr.New(coreerr.Protocol, "tlv.receive.value")
		}
	}

	rec := Record{Tag: tag, Value: value}
	switch tag {
	case StartTag:
		rec.Type = StartType
	case CheckTag:
		rec.Type = CheckType
	case EndTag:
		rec.Type = EndType
	case ErrorTag:
		rec.Type = ErrorType
		if v, perr := strconv.ParseInt(string(value), 10, 32); perr == nil {
			rec.ErrNo = int32(v)
		}
	default:
		rec.Type = DataType
	}
	return rec, nil
}
