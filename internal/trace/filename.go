package trace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ProtobufVersion is the protobuf release recorded in generated trace
// names and channel metadata.
const ProtobufVersion = "29.3"

// Name is the decomposition of a trace filename following the OSI
// naming convention:
//
//	<timestamp>_<type>_<osi-version>_<protobuf-version>_<frames>_<name>.<ext>
//
// for example 20240221T141700Z_sv_370_293_528_minimal_example.osi.
type Name struct {
	Timestamp       time.Time
	Type            MessageType
	OSIVersion      string
	ProtobufVersion string
	Frames          int
	Custom          string
}

const nameTimeLayout = "20060102T150405Z"

var namePattern = regexp.MustCompile(
	`^(\d{8}T\d{6}Z)_(sv|svc|gt|hvd|sd|tc|tcu|tu|mr|su)_([^_]+)_([^_]+)_(\d+)_([^.]+)\.(osi|mcap)(\.(xz|lzma))?$`)

// ParseName decomposes a trace filename. The second return value is
// false when the name does not follow the convention; that is common
// for ad-hoc traces and not an error.
func ParseName(filename string) (Name, bool) {
	m := namePattern.FindStringSubmatch(filename)
	if m == nil {
		return Name{}, false
	}
	ts, err := time.Parse(nameTimeLayout, m[1])
	if err != nil {
		return Name{}, false
	}
	frames, err := strconv.Atoi(m[5])
	if err != nil {
		return Name{}, false
	}
	return Name{
		Timestamp:       ts,
		Type:            ParseMessageType(m[2]),
		OSIVersion:      m[3],
		ProtobufVersion: m[4],
		Frames:          frames,
		Custom:          m[6],
	}, true
}

// Filename renders the conventional filename for a single-channel trace
// with the given extension ("osi", "osi.xz" or "mcap").
func (n Name) Filename(ext string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%d_%s.%s",
		n.Timestamp.UTC().Format(nameTimeLayout),
		n.Type.Abbrev(),
		n.OSIVersion,
		n.ProtobufVersion,
		n.Frames,
		n.Custom,
		ext)
}

// CompactVersion strips the dots from a dotted version string so it can
// be embedded in a filename ("3.7.0" becomes "370").
func CompactVersion(v string) string {
	return strings.ReplaceAll(v, ".", "")
}
