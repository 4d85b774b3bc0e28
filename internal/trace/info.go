package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/foxglove/mcap/go/mcap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/scenario.report/internal/osi"
)

// Info summarizes a trace file and every channel it carries.
type Info struct {
	Path     string
	Format   Format
	Size     int64
	Channels []ChannelInfo
}

// ChannelInfo holds the per-channel statistics the original OSI trace
// tooling reports: time window, average step between frames and the
// interface version of the recorded messages.
type ChannelInfo struct {
	Topic         string
	MessageType   MessageType
	OSIVersion    string
	Frames        int
	Start         float64
	Stop          float64
	AvgStep       float64
	MovingObjects int
	Metadata      map[string]string
}

// Summarize reads path once and reports its channels.
func Summarize(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	format := DetectFormat(path)
	info := &Info{Path: path, Format: format, Size: st.Size()}

	switch format {
	case FormatMCAP:
		channels, err := summarizeMCAP(path)
		if err != nil {
			return nil, err
		}
		info.Channels = channels
	case FormatSingleChannel:
		ch, err := summarizeSingle(path)
		if err != nil {
			return nil, err
		}
		info.Channels = []ChannelInfo{ch}
	default:
		return nil, fmt.Errorf("summarize %s: unrecognized trace extension", path)
	}
	return info, nil
}

func summarizeSingle(path string) (ChannelInfo, error) {
	r, err := Open(path)
	if err != nil {
		return ChannelInfo{}, err
	}
	defer r.Close()

	acc := newChannelAccum("", r.MessageType(), nil)
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ChannelInfo{}, err
		}
		if err := acc.add(frame); err != nil {
			return ChannelInfo{}, &DecodeError{Path: path, Frame: acc.frames, Err: err}
		}
	}
	return acc.info(), nil
}

func summarizeMCAP(path string) ([]ChannelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := mcap.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", path, err)
	}
	defer reader.Close()

	meta, err := reader.Info()
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", path, err)
	}

	accs := make(map[uint16]*channelAccum)
	var order []uint16
	for id, ch := range meta.Channels {
		if ch == nil {
			continue
		}
		mtype := MessageTypeUnknown
		if sch, ok := meta.Schemas[ch.SchemaID]; ok && sch != nil {
			mtype = ParseMessageType(sch.Name)
		}
		accs[id] = newChannelAccum(ch.Topic, mtype, ch.Metadata)
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	it, err := reader.Messages()
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", path, err)
	}
	for {
		_, ch, msg, err := it.Next(nil)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", path, err)
		}
		acc, ok := accs[ch.ID]
		if !ok {
			acc = newChannelAccum(ch.Topic, MessageTypeUnknown, ch.Metadata)
			accs[ch.ID] = acc
			order = append(order, ch.ID)
		}
		if err := acc.add(msg.Data); err != nil {
			return nil, &DecodeError{Path: path, Frame: acc.frames, Err: err}
		}
	}

	channels := make([]ChannelInfo, 0, len(order))
	for _, id := range order {
		channels = append(channels, accs[id].info())
	}
	return channels, nil
}

type channelAccum struct {
	topic    string
	mtype    MessageType
	metadata map[string]string

	frames  int
	start   float64
	stop    float64
	prev    float64
	stepAcc float64
	version string
	ids     map[uint64]struct{}
}

func newChannelAccum(topic string, mtype MessageType, metadata map[string]string) *channelAccum {
	return &channelAccum{
		topic:    topic,
		mtype:    mtype,
		metadata: metadata,
		ids:      make(map[uint64]struct{}),
	}
}

func (a *channelAccum) add(frame []byte) error {
	t, err := osi.FrameTime(frame)
	if err != nil {
		return err
	}
	if a.frames == 0 {
		a.start = t
	} else {
		a.stepAcc += t - a.prev
	}
	a.prev = t
	a.stop = t
	a.frames++

	if a.version == "" {
		if v, err := osi.FrameVersion(frame); err == nil && v != nil {
			a.version = v.String()
		}
	}
	collectMovingObjects(frame, a.mtype, a.ids)
	return nil
}

func (a *channelAccum) info() ChannelInfo {
	avg := 0.0
	if a.frames > 1 {
		avg = a.stepAcc / float64(a.frames-1)
	}
	return ChannelInfo{
		Topic:         a.topic,
		MessageType:   a.mtype,
		OSIVersion:    a.version,
		Frames:        a.frames,
		Start:         a.start,
		Stop:          a.stop,
		AvgStep:       avg,
		MovingObjects: len(a.ids),
		Metadata:      a.metadata,
	}
}

// collectMovingObjects records the moving object IDs present in one
// ground-truth-bearing frame. Frames of other message types and
// malformed frames contribute nothing; the summary stays best effort.
func collectMovingObjects(frame []byte, mtype MessageType, ids map[uint64]struct{}) {
	gt := frame
	switch mtype {
	case MessageTypeGroundTruth:
	case MessageTypeSensorView, MessageTypeUnknown:
		var body []byte
		_ = osi.VisitFields(frame, func(num protowire.Number, typ protowire.Type, payload []byte) error {
			if num == osi.FieldSensorViewGlobalGroundTruth && typ == protowire.BytesType && body == nil {
				b, err := osi.MessageFieldBody(payload)
				if err != nil {
					return err
				}
				body = b
			}
			return nil
		})
		if body == nil {
			return
		}
		gt = body
	default:
		return
	}

	_ = osi.VisitFields(gt, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num != osi.FieldGroundTruthMovingObject || typ != protowire.BytesType {
			return nil
		}
		mo, err := osi.MessageFieldBody(payload)
		if err != nil {
			return err
		}
		return osi.VisitFields(mo, func(num protowire.Number, typ protowire.Type, payload []byte) error {
			if num != 1 || typ != protowire.BytesType {
				return nil
			}
			idBody, err := osi.MessageFieldBody(payload)
			if err != nil {
				return err
			}
			return osi.VisitFields(idBody, func(num protowire.Number, typ protowire.Type, payload []byte) error {
				if num == 1 && typ == protowire.VarintType {
					if v, n := protowire.ConsumeVarint(payload); n >= 0 {
						ids[v] = struct{}{}
					}
				}
				return nil
			})
		})
	})
}
