package trace

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/banshee-data/scenario.report/internal/monitoring"
	"github.com/banshee-data/scenario.report/internal/osi"
	"github.com/banshee-data/scenario.report/internal/version"
)

// TraceMetadataName is the MCAP metadata record that carries trace-wide
// OSI attributes.
const TraceMetadataName = "net.asam.osi.trace"

// Channel metadata keys from the OSI trace-file conventions.
const (
	ChannelKeyOSIVersion      = "net.asam.osi.trace.channel.osi_version"
	ChannelKeyProtobufVersion = "net.asam.osi.trace.channel.protobuf_version"
	ChannelKeyDescription     = "net.asam.osi.trace.channel.description"
)

// WriterOptions tune trace output. The zero value is usable: the topic
// defaults to the file stem and metadata to DefaultFileMetadata and
// DefaultChannelMetadata.
type WriterOptions struct {
	Topic           string
	FileMetadata    map[string]string
	ChannelMetadata map[string]string
}

// Writer emits frames into a single trace channel, choosing the
// container layout from the destination extension the same way Reader
// does on the way in.
type Writer struct {
	path  string
	mtype MessageType

	file  *os.File
	out   io.Writer
	comp  io.WriteCloser
	count int

	mcapWriter *mcap.Writer
	channelID  uint16
	sequence   uint32
}

// Create opens a trace for writing with default options.
func Create(path string, mtype MessageType) (*Writer, error) {
	return CreateWith(path, mtype, WriterOptions{})
}

// CreateWith opens a trace for writing.
func CreateWith(path string, mtype MessageType, opts WriterOptions) (*Writer, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("create %s: unrecognized trace extension", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{path: path, mtype: mtype, file: f}

	if format == FormatMCAP {
		if err := w.startMCAP(opts); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
		return w, nil
	}

	w.out = f
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xz"):
		xw, err := xz.NewWriter(f)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		w.comp = xw
		w.out = xw
	case strings.HasSuffix(lower, ".lzma"):
		lw, err := lzma.NewWriter(f)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		w.comp = lw
		w.out = lw
	}
	return w, nil
}

func (w *Writer) startMCAP(opts WriterOptions) error {
	fileMeta := opts.FileMetadata
	if fileMeta == nil {
		fileMeta = DefaultFileMetadata("")
	}
	warnMissing(TraceMetadataName, fileMeta,
		[]string{"version", "min_osi_version", "max_osi_version", "min_protobuf_version", "max_protobuf_version"},
		[]string{"zero_time", "creation_time", "description", "authors", "data_sources"})

	channelMeta := opts.ChannelMetadata
	if channelMeta == nil {
		channelMeta = DefaultChannelMetadata()
	}
	warnMissing("net.asam.osi.trace.channel", channelMeta,
		[]string{ChannelKeyOSIVersion, ChannelKeyProtobufVersion},
		[]string{ChannelKeyDescription})

	topic := opts.Topic
	if topic == "" {
		base := filepath.Base(w.path)
		topic = strings.TrimSuffix(base, filepath.Ext(base))
	}

	mw, err := mcap.NewWriter(w.file, &mcap.WriterOptions{
		Chunked:     true,
		Compression: mcap.CompressionZSTD,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}
	if err := mw.WriteHeader(&mcap.Header{
		Profile: "osi2mcap",
		Library: "scenario.report " + version.Version,
	}); err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}
	if err := mw.WriteMetadata(&mcap.Metadata{
		Name:     TraceMetadataName,
		Metadata: fileMeta,
	}); err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}
	schemaName := w.mtype.SchemaName()
	if schemaName == "" {
		// Unknown channels decode as SensorView, the convention default.
		schemaName = MessageTypeSensorView.SchemaName()
	}
	// The schema record carries the message name only. Writing the full
	// FileDescriptorSet would require the generated OSI descriptors,
	// which this module does not depend on.
	if err := mw.WriteSchema(&mcap.Schema{
		ID:       1,
		Name:     schemaName,
		Encoding: "protobuf",
	}); err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}
	if err := mw.WriteChannel(&mcap.Channel{
		ID:              0,
		SchemaID:        1,
		Topic:           topic,
		MessageEncoding: "protobuf",
		Metadata:        channelMeta,
	}); err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}
	w.mcapWriter = mw
	return nil
}

func warnMissing(scope string, meta map[string]string, required, recommended []string) {
	var missing []string
	for _, k := range required {
		if _, ok := meta[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		monitoring.Logf("trace: missing mandatory %s metadata: %s", scope, strings.Join(missing, ", "))
	}
	missing = missing[:0]
	for _, k := range recommended {
		if _, ok := meta[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		monitoring.Logf("trace: missing recommended %s metadata: %s", scope, strings.Join(missing, ", "))
	}
}

// DefaultFileMetadata builds the net.asam.osi.trace metadata record for
// traces this module generates itself.
func DefaultFileMetadata(description string) map[string]string {
	now := time.Now().UTC().Format(time.RFC3339)
	return map[string]string{
		"version":              "1.0.0",
		"min_osi_version":      osi.CurrentVersion.String(),
		"max_osi_version":      osi.CurrentVersion.String(),
		"min_protobuf_version": ProtobufVersion,
		"max_protobuf_version": ProtobufVersion,
		"zero_time":            now,
		"creation_time":        now,
		"description":          description,
		"authors":              "scenario.report",
		"data_sources":         "synthetic",
	}
}

// DefaultChannelMetadata builds the per-channel OSI metadata keys.
func DefaultChannelMetadata() map[string]string {
	return map[string]string{
		ChannelKeyOSIVersion:      osi.CurrentVersion.String(),
		ChannelKeyProtobufVersion: ProtobufVersion,
	}
}

// Write appends one raw frame. For MCAP output the frame's own OSI
// timestamp becomes the log time.
func (w *Writer) Write(frame []byte) error {
	if w.mcapWriter != nil {
		t, err := osi.FrameTime(frame)
		if err != nil {
			return fmt.Errorf("write %s frame %d: %w", w.path, w.count, err)
		}
		ns := uint64(t * 1e9)
		err = w.mcapWriter.WriteMessage(&mcap.Message{
			ChannelID:   w.channelID,
			Sequence:    w.sequence,
			LogTime:     ns,
			PublishTime: ns,
			Data:        frame,
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", w.path, err)
		}
		w.sequence++
		w.count++
		return nil
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := w.out.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	if _, err := w.out.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.count++
	return nil
}

// Count reports the number of frames written so far.
func (w *Writer) Count() int { return w.count }

// Path returns the destination path.
func (w *Writer) Path() string { return w.path }

// Close finalizes the container and closes the file.
func (w *Writer) Close() error {
	var firstErr error
	if w.mcapWriter != nil {
		if err := w.mcapWriter.Close(); err != nil {
			firstErr = err
		}
		w.mcapWriter = nil
	}
	if w.comp != nil {
		if err := w.comp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.comp = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.file = nil
	}
	return firstErr
}
