package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/banshee-data/scenario.report/internal/osi"
)

// Frames larger than this are treated as corruption rather than data.
const maxFrameLen = 256 << 20

// Reader iterates over the frames of one OSI trace channel. For
// single-channel files that is the whole file; for MCAP containers it
// is one topic.
type Reader struct {
	path   string
	format Format
	topic  string
	mtype  MessageType

	file  *os.File
	br    *bufio.Reader
	index int

	mcapReader *mcap.Reader
	mcapIt     mcap.MessageIterator
}

// Open opens a trace for reading. The channel message type is detected
// from the filename for single-channel traces and from the MCAP schema
// for containers; for MCAP files the lowest-numbered channel is used.
func Open(path string) (*Reader, error) {
	return OpenChannel(path, "")
}

// OpenChannel opens one topic of an MCAP trace. The topic is ignored
// for single-channel files.
func OpenChannel(path, topic string) (*Reader, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("open %s: unrecognized trace extension", path)
	}
	r := &Reader{path: path, format: format, topic: topic}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	r.file = f
	r.index = 0

	if r.format == FormatMCAP {
		if err := r.openMCAP(); err != nil {
			f.Close()
			return err
		}
		return nil
	}

	var src io.Reader = f
	lower := strings.ToLower(r.path)
	switch {
	case strings.HasSuffix(lower, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("open %s: %w", r.path, err)
		}
		src = xr
	case strings.HasSuffix(lower, ".lzma"):
		lr, err := lzma.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("open %s: %w", r.path, err)
		}
		src = lr
	}
	r.br = bufio.NewReaderSize(src, 1<<20)

	if r.mtype == MessageTypeUnknown {
		if name, ok := ParseName(filepath.Base(r.path)); ok {
			r.mtype = name.Type
		}
	}
	return nil
}

func (r *Reader) openMCAP() error {
	mr, err := mcap.NewReader(r.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	info, err := mr.Info()
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}

	var chosen *mcap.Channel
	for _, ch := range info.Channels {
		if r.topic != "" {
			if ch.Topic == r.topic {
				chosen = ch
				break
			}
			continue
		}
		if chosen == nil || ch.ID < chosen.ID {
			chosen = ch
		}
	}
	if chosen == nil {
		if r.topic != "" {
			return fmt.Errorf("open %s: topic %q not found", r.path, r.topic)
		}
		return fmt.Errorf("open %s: no channels", r.path)
	}
	r.topic = chosen.Topic
	if schema, ok := info.Schemas[chosen.SchemaID]; ok {
		r.mtype = ParseMessageType(schema.Name)
	}

	it, err := mr.Messages()
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	r.mcapReader = mr
	r.mcapIt = it
	return nil
}

// MessageType reports the detected channel message type, which may be
// MessageTypeUnknown for unconventionally named single-channel files.
func (r *Reader) MessageType() MessageType { return r.mtype }

// SetMessageType overrides the detected message type, for files whose
// names carry no type tag.
func (r *Reader) SetMessageType(t MessageType) { r.mtype = t }

// Topic reports the MCAP topic being read, or "" for single-channel
// traces.
func (r *Reader) Topic() string {
	if r.format == FormatMCAP {
		return r.topic
	}
	return ""
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Next returns the next raw frame. It returns io.EOF once the channel
// is exhausted and a *DecodeError for malformed input.
func (r *Reader) Next() ([]byte, error) {
	if r.format == FormatMCAP {
		return r.nextMCAP()
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, r.decodeErr(fmt.Errorf("truncated frame length: %w", err))
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, r.decodeErr(fmt.Errorf("frame length %d exceeds %d byte limit", n, maxFrameLen))
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r.br, frame); err != nil {
		return nil, r.decodeErr(fmt.Errorf("truncated frame body: %w", err))
	}
	r.index++
	return frame, nil
}

func (r *Reader) nextMCAP() ([]byte, error) {
	for {
		_, channel, msg, err := r.mcapIt.Next(nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, r.decodeErr(err)
		}
		if channel.Topic != r.topic {
			continue
		}
		r.index++
		return msg.Data, nil
	}
}

// NextGroundTruth returns the next frame decoded down to its ground
// truth. SensorView channels are unwrapped; unknown channel types are
// decoded as SensorView, matching the trace-file convention default.
func (r *Reader) NextGroundTruth() (*osi.GroundTruth, error) {
	frame, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch r.mtype {
	case MessageTypeGroundTruth:
		gt, err := osi.UnmarshalGroundTruth(frame)
		if err != nil {
			return nil, r.decodeErr(err)
		}
		return gt, nil
	case MessageTypeSensorView, MessageTypeUnknown:
		sv, err := osi.UnmarshalSensorView(frame)
		if err != nil {
			return nil, r.decodeErr(err)
		}
		if sv.GlobalGroundTruth == nil {
			return nil, r.decodeErr(errors.New("sensor view frame carries no global ground truth"))
		}
		return sv.GlobalGroundTruth, nil
	}
	return nil, fmt.Errorf("trace %s carries %s, not ground truth", r.path, r.mtype)
}

// Reset repositions the reader at the first frame.
func (r *Reader) Reset() error {
	topic := r.topic
	mtype := r.mtype
	if err := r.Close(); err != nil {
		return err
	}
	r.topic = topic
	r.mtype = mtype
	return r.open()
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.mcapReader != nil {
		r.mcapReader.Close()
		r.mcapReader = nil
		r.mcapIt = nil
	}
	r.br = nil
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Reader) decodeErr(err error) error {
	return &DecodeError{Path: r.path, Frame: r.index, Err: err}
}
