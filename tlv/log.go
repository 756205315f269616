package tlv

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/quietloop/vaultpipe/internal/coreerr"
)

// LogRecord is one forwarded log line (spec.md §4.M): a remote backup client
// ships its internal/xlog activity to the backend over the same socket and
// framing already used for data, on a tag in the reserved log range, instead
// of opening a side channel.
type LogRecord struct {
	Level   string `json:"level"`
	Module  string `json:"module"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

var logJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// LogSender forwards LogRecord values over an underlying Sender's message,
// tagged within the reserved log range. A caller picks a stream index
// (0-9) to multiplex independent log streams (e.g. stdout/stderr) over one
// TLV connection; index is clamped into range.
type LogSender struct {
	sender *Sender
	stream uint16
}

// NewLogSender returns a log carrier using tag LogRangeStart+stream.
func NewLogSender(sender *Sender, stream uint16) *LogSender {
	if stream > LogRangeEnd-LogRangeStart {
		stream = LogRangeEnd - LogRangeStart
	}
	return &LogSender{sender: sender, stream: stream}
}

// Send encodes rec as JSON and writes it as one tagged value within the
// current message (the caller must have already called Sender.Start).
func (l *LogSender) Send(rec LogRecord) error {
	buf, err := logJSON.Marshal(rec)
	if err != nil {
		return coreerr.Wrap(coreerr.Codec, "tlv.log.send", err)
	}
	return l.sender.Write(LogRangeStart+l.stream, buf)
}

// LogReceiver decodes LogRecord values out of a Receiver's stream, passing
// through any record outside the log range unchanged.
type LogReceiver struct {
	receiver *Receiver
}

// NewLogReceiver wraps receiver for log-aware receiving.
func NewLogReceiver(receiver *Receiver) *LogReceiver {
	return &LogReceiver{receiver: receiver}
}

// Receive reads one frame. If its tag falls in the reserved log range, log
// is non-nil and holds the decoded record; rec is always returned so the
// caller can still inspect Type/Tag for control-flow records (start/check/
// end/error) interleaved on the same connection.
func (l *LogReceiver) Receive() (rec Record, log *LogRecord, err error) {
	rec, err = l.receiver.Receive()
	if err != nil {
		return Record{}, nil, err
	}
	if rec.Tag < LogRangeStart || rec.Tag > LogRangeEnd {
		return rec, nil, nil
	}
	var decoded LogRecord
	if err := logJSON.Unmarshal(rec.Value, &decoded); err != nil {
		return rec, nil, coreerr.Wrap(coreerr.Codec, "tlv.log.receive", err)
	}
	return rec, &decoded, nil
}
