package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/scenario.report/internal/osi"
)

// Crop copies src to dst keeping only frames whose timestamps fall
// inside [start, end], bounds inclusive. An end smaller than start
// means no upper bound. Returns the number of frames kept.
func Crop(src, dst string, start, end float64) (int, error) {
	return runCopy(src, dst, "", MessageTypeUnknown, func(frame []byte) ([]byte, error) {
		t, err := osi.FrameTime(frame)
		if err != nil {
			return nil, err
		}
		if t < start {
			return nil, nil
		}
		if end >= start && t > end {
			return nil, nil
		}
		return frame, nil
	})
}

// Convert copies src to dst unchanged, letting the destination
// extension pick the container layout. topic selects the source channel
// when src is multi-channel and names the output channel when dst is.
func Convert(src, dst, topic string) (int, error) {
	return runCopy(src, dst, topic, MessageTypeUnknown, nil)
}

// WrapGroundTruth rewrites a ground truth trace as a sensor view trace:
// each frame gets the current interface version, hostID as host vehicle
// ID and sequentially renumbered moving objects, then is embedded as
// the view's global ground truth. Fields this module does not model
// pass through untouched.
func WrapGroundTruth(src, dst string, hostID uint64) (int, error) {
	r, err := Open(src)
	if err != nil {
		return 0, err
	}
	mtype := r.MessageType()
	r.Close()
	if mtype != MessageTypeGroundTruth && mtype != MessageTypeUnknown {
		return 0, fmt.Errorf("wrap %s: trace carries %s, not ground truth", src, mtype)
	}
	return runCopy(src, dst, "", MessageTypeSensorView, func(frame []byte) ([]byte, error) {
		return wrapGroundTruthFrame(frame, hostID)
	})
}

// Strip drops the static road description from every frame: lanes, lane
// boundaries, logical lanes, reference lines and environmental
// conditions. Works on ground truth traces and on sensor view traces,
// where the embedded global ground truth is filtered.
func Strip(src, dst string) (int, error) {
	r, err := Open(src)
	if err != nil {
		return 0, err
	}
	mtype := r.MessageType()
	r.Close()

	var fn func(frame []byte) ([]byte, error)
	switch mtype {
	case MessageTypeGroundTruth:
		fn = stripGroundTruth
	case MessageTypeSensorView, MessageTypeUnknown:
		fn = stripSensorView
	default:
		return 0, fmt.Errorf("strip %s: trace carries %s, nothing to strip", src, mtype)
	}
	return runCopy(src, dst, "", MessageTypeUnknown, fn)
}

// runCopy streams src into dst frame by frame. fn may rewrite a frame
// or drop it by returning nil; a nil fn copies verbatim. The partially
// written destination is removed on failure.
func runCopy(src, dst, topic string, outType MessageType, fn func(frame []byte) ([]byte, error)) (int, error) {
	r, err := OpenChannel(src, topic)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	mtype := outType
	if mtype == MessageTypeUnknown {
		mtype = r.MessageType()
	}
	w, err := CreateWith(dst, mtype, WriterOptions{Topic: topic})
	if err != nil {
		return 0, err
	}

	fail := func(err error) (int, error) {
		w.Close()
		os.Remove(dst)
		return 0, err
	}

	for i := 0; ; i++ {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		out := frame
		if fn != nil {
			out, err = fn(frame)
			if err != nil {
				return fail(&DecodeError{Path: src, Frame: i, Err: err})
			}
			if out == nil {
				continue
			}
		}
		if err := w.Write(out); err != nil {
			return fail(err)
		}
	}

	n := w.Count()
	if err := w.Close(); err != nil {
		os.Remove(dst)
		return 0, err
	}
	return n, nil
}

func wrapGroundTruthFrame(frame []byte, hostID uint64) ([]byte, error) {
	versionBody := osi.MarshalInterfaceVersion(osi.CurrentVersion)
	hostBody := osi.MarshalIdentifierValue(hostID)

	var gt []byte
	var tsBody []byte
	var seq uint64
	sawVersion, sawHost := false, false

	err := osi.VisitFields(frame, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch {
		case num == osi.FieldGroundTruthVersion && typ == protowire.BytesType:
			if !sawVersion {
				gt = osi.AppendMessageField(gt, osi.FieldGroundTruthVersion, versionBody)
				sawVersion = true
			}
		case num == osi.FieldGroundTruthHostVehicleID && typ == protowire.BytesType:
			if !sawHost {
				gt = osi.AppendMessageField(gt, osi.FieldGroundTruthHostVehicleID, hostBody)
				sawHost = true
			}
		case num == osi.FieldGroundTruthTimestamp && typ == protowire.BytesType:
			body, err := osi.MessageFieldBody(payload)
			if err != nil {
				return err
			}
			tsBody = body
			gt = osi.AppendField(gt, num, typ, payload)
		case num == osi.FieldGroundTruthMovingObject && typ == protowire.BytesType:
			body, err := osi.MessageFieldBody(payload)
			if err != nil {
				return err
			}
			seq++
			mo, err := renumberObject(body, seq)
			if err != nil {
				return err
			}
			gt = osi.AppendMessageField(gt, osi.FieldGroundTruthMovingObject, mo)
		default:
			gt = osi.AppendField(gt, num, typ, payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawVersion {
		gt = osi.AppendMessageField(gt, osi.FieldGroundTruthVersion, versionBody)
	}
	if !sawHost {
		gt = osi.AppendMessageField(gt, osi.FieldGroundTruthHostVehicleID, hostBody)
	}

	var sv []byte
	sv = osi.AppendMessageField(sv, osi.FieldSensorViewVersion, versionBody)
	if tsBody != nil {
		sv = osi.AppendMessageField(sv, osi.FieldSensorViewTimestamp, tsBody)
	}
	sv = osi.AppendMessageField(sv, osi.FieldSensorViewGlobalGroundTruth, gt)
	sv = osi.AppendMessageField(sv, osi.FieldSensorViewHostVehicleID, hostBody)
	return sv, nil
}

// renumberObject replaces the object's ID, keeping every other field as
// encoded.
func renumberObject(mo []byte, id uint64) ([]byte, error) {
	idBody := osi.MarshalIdentifierValue(id)
	var out []byte
	saw := false
	err := osi.VisitFields(mo, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num == 1 && typ == protowire.BytesType {
			if !saw {
				out = osi.AppendMessageField(out, 1, idBody)
				saw = true
			}
			return nil
		}
		out = osi.AppendField(out, num, typ, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !saw {
		out = append(osi.AppendMessageField(nil, 1, idBody), out...)
	}
	return out, nil
}

var strippedGroundTruthFields = map[protowire.Number]bool{
	osi.FieldGroundTruthLaneBoundary:     true,
	osi.FieldGroundTruthLane:             true,
	osi.FieldGroundTruthEnvConditions:    true,
	osi.FieldGroundTruthReferenceLine:    true,
	osi.FieldGroundTruthLogicalLaneBound: true,
	osi.FieldGroundTruthLogicalLane:      true,
}

func stripGroundTruth(gt []byte) ([]byte, error) {
	var out []byte
	err := osi.VisitFields(gt, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if strippedGroundTruthFields[num] {
			return nil
		}
		out = osi.AppendField(out, num, typ, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stripSensorView(frame []byte) ([]byte, error) {
	var out []byte
	err := osi.VisitFields(frame, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num == osi.FieldSensorViewGlobalGroundTruth && typ == protowire.BytesType {
			body, err := osi.MessageFieldBody(payload)
			if err != nil {
				return err
			}
			stripped, err := stripGroundTruth(body)
			if err != nil {
				return err
			}
			out = osi.AppendMessageField(out, num, stripped)
			return nil
		}
		out = osi.AppendField(out, num, typ, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
