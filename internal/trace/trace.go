// Package trace reads and writes OSI trace files in the two formats the
// OSI trace-file conventions define: single-channel binary streams of
// length-prefixed protobuf frames (plain or LZMA/XZ compressed) and
// multi-channel MCAP containers.
//
// Frames move through this package as raw bytes. Callers that need the
// decoded form go through NextGroundTruth or the osi package; the
// wire-level operations in ops.go (crop, convert, wrap, strip) never
// fully decode a frame, so fields outside the osi package's subset
// survive a rewrite untouched.
package trace

import (
	"fmt"
	"strings"
)

// Format distinguishes the two trace container layouts.
type Format int

const (
	FormatUnknown Format = iota
	FormatSingleChannel
	FormatMCAP
)

func (f Format) String() string {
	switch f {
	case FormatSingleChannel:
		return "single-channel"
	case FormatMCAP:
		return "mcap"
	}
	return "unknown"
}

// DetectFormat maps a trace path to its container format by extension.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".mcap"):
		return FormatMCAP
	case strings.HasSuffix(lower, ".osi"),
		strings.HasSuffix(lower, ".xz"),
		strings.HasSuffix(lower, ".lzma"):
		return FormatSingleChannel
	}
	return FormatUnknown
}

// MessageType identifies the OSI top-level message a trace carries.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeGroundTruth
	MessageTypeSensorView
	MessageTypeSensorViewConfiguration
	MessageTypeHostVehicleData
	MessageTypeSensorData
	MessageTypeTrafficCommand
	MessageTypeTrafficCommandUpdate
	MessageTypeTrafficUpdate
	MessageTypeMotionRequest
	MessageTypeStreamingUpdate
)

var messageTypeNames = map[MessageType]string{
	MessageTypeGroundTruth:             "GroundTruth",
	MessageTypeSensorView:              "SensorView",
	MessageTypeSensorViewConfiguration: "SensorViewConfiguration",
	MessageTypeHostVehicleData:         "HostVehicleData",
	MessageTypeSensorData:              "SensorData",
	MessageTypeTrafficCommand:          "TrafficCommand",
	MessageTypeTrafficCommandUpdate:    "TrafficCommandUpdate",
	MessageTypeTrafficUpdate:           "TrafficUpdate",
	MessageTypeMotionRequest:           "MotionRequest",
	MessageTypeStreamingUpdate:         "StreamingUpdate",
}

var messageTypeAbbrevs = map[MessageType]string{
	MessageTypeGroundTruth:             "gt",
	MessageTypeSensorView:              "sv",
	MessageTypeSensorViewConfiguration: "svc",
	MessageTypeHostVehicleData:         "hvd",
	MessageTypeSensorData:              "sd",
	MessageTypeTrafficCommand:          "tc",
	MessageTypeTrafficCommandUpdate:    "tcu",
	MessageTypeTrafficUpdate:           "tu",
	MessageTypeMotionRequest:           "mr",
	MessageTypeStreamingUpdate:         "su",
}

func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// Abbrev returns the short type tag used in trace filenames ("gt",
// "sv", ...), or "" for unknown types.
func (t MessageType) Abbrev() string {
	return messageTypeAbbrevs[t]
}

// SchemaName returns the fully qualified protobuf message name as it
// appears in MCAP schema records.
func (t MessageType) SchemaName() string {
	if s, ok := messageTypeNames[t]; ok {
		return "osi3." + s
	}
	return ""
}

// ParseMessageType resolves a message type from its full name, its
// filename abbreviation, or an MCAP schema name ("osi3.SensorView").
func ParseMessageType(s string) MessageType {
	s = strings.TrimPrefix(s, "osi3.")
	for t, name := range messageTypeNames {
		if strings.EqualFold(s, name) {
			return t
		}
	}
	for t, abbrev := range messageTypeAbbrevs {
		if strings.EqualFold(s, abbrev) {
			return t
		}
	}
	return MessageTypeUnknown
}

// DecodeError reports a trace frame that could not be read or decoded.
// Frame is the zero-based index of the offending frame within the file.
type DecodeError struct {
	Path  string
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s frame %d: %v", e.Path, e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
