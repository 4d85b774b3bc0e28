package osi

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/scenario.report/internal/geom"
)

// Field numbers from the OSI protobuf definitions. Only the fields this
// module consumes are listed; everything else is skipped on decode and
// never produced on encode.
const (
	fieldTimestampSeconds = 1
	fieldTimestampNanos   = 2

	fieldVersionMajor = 1
	fieldVersionMinor = 2
	fieldVersionPatch = 3

	fieldIdentifierValue = 1

	fieldVec3X = 1
	fieldVec3Y = 2
	fieldVec3Z = 3

	fieldOrientationRoll  = 1
	fieldOrientationPitch = 2
	fieldOrientationYaw   = 3

	fieldDimLength = 1
	fieldDimWidth  = 2
	fieldDimHeight = 3

	fieldBaseDimension   = 1
	fieldBasePosition    = 2
	fieldBaseOrientation = 3
	fieldBaseVelocity    = 4

	fieldMovingObjectID           = 1
	fieldMovingObjectBase         = 2
	fieldMovingObjectType         = 3
	fieldMovingObjectVehicleAttrs = 5
	fieldMovingObjectVehicleClass = 6

	fieldVehicleAttrsDriverID        = 1
	fieldVehicleAttrsRadiusWheel     = 2
	fieldVehicleAttrsNumberWheels    = 3
	fieldVehicleAttrsBBCenterToRear  = 4
	fieldVehicleAttrsBBCenterToFront = 5

	fieldVehicleClassType = 1

	fieldStationaryObjectID   = 1
	fieldStationaryObjectBase = 2
)

// GroundTruth and SensorView top-level field numbers. These are exported
// because the trace package filters and re-tags frames at the wire level
// without a full decode.
const (
	FieldGroundTruthVersion          = 1
	FieldGroundTruthTimestamp        = 2
	FieldGroundTruthHostVehicleID    = 3
	FieldGroundTruthStationaryObject = 4
	FieldGroundTruthMovingObject     = 5
	FieldGroundTruthLaneBoundary     = 9
	FieldGroundTruthLane             = 10
	FieldGroundTruthEnvConditions    = 12
	FieldGroundTruthReferenceLine    = 17
	FieldGroundTruthLogicalLaneBound = 18
	FieldGroundTruthLogicalLane      = 19

	FieldSensorViewVersion           = 1
	FieldSensorViewTimestamp         = 2
	FieldSensorViewSensorID          = 3
	FieldSensorViewGlobalGroundTruth = 7
	FieldSensorViewHostVehicleID     = 8
)

func consumeDouble(b []byte) (float64, int) {
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, n
	}
	return math.Float64frombits(v), n
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// scan walks one serialized message and hands each field's raw value to
// fn. The payload slice still carries the wire encoding of the value, so
// bytes fields keep their length prefix. Fields fn does not care about
// are simply ignored by it.
func scan(b []byte, fn func(num protowire.Number, typ protowire.Type, payload []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		size := protowire.ConsumeFieldValue(num, typ, b)
		if size < 0 {
			return protowire.ParseError(size)
		}
		if err := fn(num, typ, b[:size]); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[size:]
	}
	return nil
}

// fieldBytes strips the length prefix of a BytesType payload.
func fieldBytes(payload []byte) ([]byte, error) {
	v, n := protowire.ConsumeBytes(payload)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return v, nil
}

func fieldVarint(payload []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(payload)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func fieldDouble(payload []byte) (float64, error) {
	v, n := consumeDouble(payload)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func unmarshalTimestamp(b []byte) (*Timestamp, error) {
	t := &Timestamp{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.VarintType {
			return nil
		}
		v, err := fieldVarint(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldTimestampSeconds:
			t.Seconds = int64(v)
		case fieldTimestampNanos:
			t.Nanos = uint32(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func appendTimestamp(b []byte, t *Timestamp) []byte {
	if t.Seconds != 0 {
		b = appendVarint(b, fieldTimestampSeconds, uint64(t.Seconds))
	}
	if t.Nanos != 0 {
		b = appendVarint(b, fieldTimestampNanos, uint64(t.Nanos))
	}
	return b
}

func unmarshalInterfaceVersion(b []byte) (*InterfaceVersion, error) {
	v := &InterfaceVersion{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.VarintType {
			return nil
		}
		x, err := fieldVarint(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldVersionMajor:
			v.Major = uint32(x)
		case fieldVersionMinor:
			v.Minor = uint32(x)
		case fieldVersionPatch:
			v.Patch = uint32(x)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func appendInterfaceVersion(b []byte, v *InterfaceVersion) []byte {
	if v.Major != 0 {
		b = appendVarint(b, fieldVersionMajor, uint64(v.Major))
	}
	if v.Minor != 0 {
		b = appendVarint(b, fieldVersionMinor, uint64(v.Minor))
	}
	if v.Patch != 0 {
		b = appendVarint(b, fieldVersionPatch, uint64(v.Patch))
	}
	return b
}

func unmarshalIdentifier(b []byte) (*Identifier, error) {
	id := &Identifier{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num == fieldIdentifierValue && typ == protowire.VarintType {
			v, err := fieldVarint(payload)
			if err != nil {
				return err
			}
			id.Value = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func appendIdentifier(b []byte, id *Identifier) []byte {
	if id.Value != 0 {
		b = appendVarint(b, fieldIdentifierValue, id.Value)
	}
	return b
}

func unmarshalVec3(b []byte) (*geom.Vec3, error) {
	v := &geom.Vec3{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.Fixed64Type {
			return nil
		}
		x, err := fieldDouble(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldVec3X:
			v.X = x
		case fieldVec3Y:
			v.Y = x
		case fieldVec3Z:
			v.Z = x
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func appendVec3(b []byte, v *geom.Vec3) []byte {
	if v.X != 0 {
		b = appendDouble(b, fieldVec3X, v.X)
	}
	if v.Y != 0 {
		b = appendDouble(b, fieldVec3Y, v.Y)
	}
	if v.Z != 0 {
		b = appendDouble(b, fieldVec3Z, v.Z)
	}
	return b
}

func unmarshalEuler(b []byte) (*geom.Euler, error) {
	e := &geom.Euler{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.Fixed64Type {
			return nil
		}
		x, err := fieldDouble(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldOrientationRoll:
			e.Roll = x
		case fieldOrientationPitch:
			e.Pitch = x
		case fieldOrientationYaw:
			e.Yaw = x
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func appendEuler(b []byte, e *geom.Euler) []byte {
	if e.Roll != 0 {
		b = appendDouble(b, fieldOrientationRoll, e.Roll)
	}
	if e.Pitch != 0 {
		b = appendDouble(b, fieldOrientationPitch, e.Pitch)
	}
	if e.Yaw != 0 {
		b = appendDouble(b, fieldOrientationYaw, e.Yaw)
	}
	return b
}

func unmarshalDim3(b []byte) (*geom.Dim3, error) {
	d := &geom.Dim3{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.Fixed64Type {
			return nil
		}
		x, err := fieldDouble(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldDimLength:
			d.Length = x
		case fieldDimWidth:
			d.Width = x
		case fieldDimHeight:
			d.Height = x
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func appendDim3(b []byte, d *geom.Dim3) []byte {
	if d.Length != 0 {
		b = appendDouble(b, fieldDimLength, d.Length)
	}
	if d.Width != 0 {
		b = appendDouble(b, fieldDimWidth, d.Width)
	}
	if d.Height != 0 {
		b = appendDouble(b, fieldDimHeight, d.Height)
	}
	return b
}

func unmarshalBaseMoving(b []byte) (*BaseMoving, error) {
	base := &BaseMoving{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldBaseDimension:
			base.Dimension, err = unmarshalDim3(body)
		case fieldBasePosition:
			base.Position, err = unmarshalVec3(body)
		case fieldBaseOrientation:
			base.Orientation, err = unmarshalEuler(body)
		case fieldBaseVelocity:
			base.Velocity, err = unmarshalVec3(body)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return base, nil
}

func appendBaseMoving(b []byte, base *BaseMoving) []byte {
	if base.Dimension != nil {
		b = appendMessage(b, fieldBaseDimension, appendDim3(nil, base.Dimension))
	}
	if base.Position != nil {
		b = appendMessage(b, fieldBasePosition, appendVec3(nil, base.Position))
	}
	if base.Orientation != nil {
		b = appendMessage(b, fieldBaseOrientation, appendEuler(nil, base.Orientation))
	}
	if base.Velocity != nil {
		b = appendMessage(b, fieldBaseVelocity, appendVec3(nil, base.Velocity))
	}
	return b
}

func unmarshalBaseStationary(b []byte) (*BaseStationary, error) {
	base := &BaseStationary{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldBaseDimension:
			base.Dimension, err = unmarshalDim3(body)
		case fieldBasePosition:
			base.Position, err = unmarshalVec3(body)
		case fieldBaseOrientation:
			base.Orientation, err = unmarshalEuler(body)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return base, nil
}

func appendBaseStationary(b []byte, base *BaseStationary) []byte {
	if base.Dimension != nil {
		b = appendMessage(b, fieldBaseDimension, appendDim3(nil, base.Dimension))
	}
	if base.Position != nil {
		b = appendMessage(b, fieldBasePosition, appendVec3(nil, base.Position))
	}
	if base.Orientation != nil {
		b = appendMessage(b, fieldBaseOrientation, appendEuler(nil, base.Orientation))
	}
	return b
}

func unmarshalVehicleAttributes(b []byte) (*VehicleAttributes, error) {
	va := &VehicleAttributes{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch {
		case num == fieldVehicleAttrsDriverID && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			va.DriverID, err = unmarshalIdentifier(body)
			return err
		case num == fieldVehicleAttrsRadiusWheel && typ == protowire.Fixed64Type:
			v, err := fieldDouble(payload)
			if err != nil {
				return err
			}
			va.RadiusWheel = v
		case num == fieldVehicleAttrsNumberWheels && typ == protowire.VarintType:
			v, err := fieldVarint(payload)
			if err != nil {
				return err
			}
			va.NumberWheels = uint32(v)
		case num == fieldVehicleAttrsBBCenterToRear && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			va.BBCenterToRear, err = unmarshalVec3(body)
			return err
		case num == fieldVehicleAttrsBBCenterToFront && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			va.BBCenterToFront, err = unmarshalVec3(body)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return va, nil
}

func appendVehicleAttributes(b []byte, va *VehicleAttributes) []byte {
	if va.DriverID != nil {
		b = appendMessage(b, fieldVehicleAttrsDriverID, appendIdentifier(nil, va.DriverID))
	}
	if va.RadiusWheel != 0 {
		b = appendDouble(b, fieldVehicleAttrsRadiusWheel, va.RadiusWheel)
	}
	if va.NumberWheels != 0 {
		b = appendVarint(b, fieldVehicleAttrsNumberWheels, uint64(va.NumberWheels))
	}
	if va.BBCenterToRear != nil {
		b = appendMessage(b, fieldVehicleAttrsBBCenterToRear, appendVec3(nil, va.BBCenterToRear))
	}
	if va.BBCenterToFront != nil {
		b = appendMessage(b, fieldVehicleAttrsBBCenterToFront, appendVec3(nil, va.BBCenterToFront))
	}
	return b
}

func unmarshalVehicleClassification(b []byte) (*VehicleClassification, error) {
	vc := &VehicleClassification{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num == fieldVehicleClassType && typ == protowire.VarintType {
			v, err := fieldVarint(payload)
			if err != nil {
				return err
			}
			vc.Type = VehicleType(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vc, nil
}

func unmarshalMovingObject(b []byte) (*MovingObject, error) {
	mo := &MovingObject{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch {
		case num == fieldMovingObjectID && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			mo.ID, err = unmarshalIdentifier(body)
			return err
		case num == fieldMovingObjectBase && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			mo.Base, err = unmarshalBaseMoving(body)
			return err
		case num == fieldMovingObjectType && typ == protowire.VarintType:
			v, err := fieldVarint(payload)
			if err != nil {
				return err
			}
			mo.Type = ObjectType(v)
		case num == fieldMovingObjectVehicleAttrs && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			mo.VehicleAttributes, err = unmarshalVehicleAttributes(body)
			return err
		case num == fieldMovingObjectVehicleClass && typ == protowire.BytesType:
			body, err := fieldBytes(payload)
			if err != nil {
				return err
			}
			mo.VehicleClassification, err = unmarshalVehicleClassification(body)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mo, nil
}

func appendMovingObject(b []byte, mo *MovingObject) []byte {
	if mo.ID != nil {
		b = appendMessage(b, fieldMovingObjectID, appendIdentifier(nil, mo.ID))
	}
	if mo.Base != nil {
		b = appendMessage(b, fieldMovingObjectBase, appendBaseMoving(nil, mo.Base))
	}
	if mo.Type != ObjectTypeUnknown {
		b = appendVarint(b, fieldMovingObjectType, uint64(mo.Type))
	}
	if mo.VehicleAttributes != nil {
		b = appendMessage(b, fieldMovingObjectVehicleAttrs, appendVehicleAttributes(nil, mo.VehicleAttributes))
	}
	if mo.VehicleClassification != nil {
		var body []byte
		if mo.VehicleClassification.Type != VehicleTypeUnknown {
			body = appendVarint(body, fieldVehicleClassType, uint64(mo.VehicleClassification.Type))
		}
		b = appendMessage(b, fieldMovingObjectVehicleClass, body)
	}
	return b
}

func unmarshalStationaryObject(b []byte) (*StationaryObject, error) {
	so := &StationaryObject{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldStationaryObjectID:
			so.ID, err = unmarshalIdentifier(body)
		case fieldStationaryObjectBase:
			so.Base, err = unmarshalBaseStationary(body)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

func appendStationaryObject(b []byte, so *StationaryObject) []byte {
	if so.ID != nil {
		b = appendMessage(b, fieldStationaryObjectID, appendIdentifier(nil, so.ID))
	}
	if so.Base != nil {
		b = appendMessage(b, fieldStationaryObjectBase, appendBaseStationary(nil, so.Base))
	}
	return b
}

// UnmarshalGroundTruth decodes one serialized osi3.GroundTruth message.
func UnmarshalGroundTruth(b []byte) (*GroundTruth, error) {
	gt := &GroundTruth{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		switch num {
		case FieldGroundTruthVersion:
			gt.Version, err = unmarshalInterfaceVersion(body)
		case FieldGroundTruthTimestamp:
			gt.Timestamp, err = unmarshalTimestamp(body)
		case FieldGroundTruthHostVehicleID:
			gt.HostVehicleID, err = unmarshalIdentifier(body)
		case FieldGroundTruthStationaryObject:
			so, serr := unmarshalStationaryObject(body)
			if serr != nil {
				return serr
			}
			gt.StationaryObjects = append(gt.StationaryObjects, so)
		case FieldGroundTruthMovingObject:
			mo, merr := unmarshalMovingObject(body)
			if merr != nil {
				return merr
			}
			gt.MovingObjects = append(gt.MovingObjects, mo)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return gt, nil
}

// MarshalGroundTruth encodes gt as a serialized osi3.GroundTruth message.
func MarshalGroundTruth(gt *GroundTruth) []byte {
	var b []byte
	if gt.Version != nil {
		b = appendMessage(b, FieldGroundTruthVersion, appendInterfaceVersion(nil, gt.Version))
	}
	if gt.Timestamp != nil {
		b = appendMessage(b, FieldGroundTruthTimestamp, appendTimestamp(nil, gt.Timestamp))
	}
	if gt.HostVehicleID != nil {
		b = appendMessage(b, FieldGroundTruthHostVehicleID, appendIdentifier(nil, gt.HostVehicleID))
	}
	for _, so := range gt.StationaryObjects {
		b = appendMessage(b, FieldGroundTruthStationaryObject, appendStationaryObject(nil, so))
	}
	for _, mo := range gt.MovingObjects {
		b = appendMessage(b, FieldGroundTruthMovingObject, appendMovingObject(nil, mo))
	}
	return b
}

// UnmarshalSensorView decodes one serialized osi3.SensorView message.
func UnmarshalSensorView(b []byte) (*SensorView, error) {
	sv := &SensorView{}
	err := scan(b, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		switch num {
		case FieldSensorViewVersion:
			sv.Version, err = unmarshalInterfaceVersion(body)
		case FieldSensorViewTimestamp:
			sv.Timestamp, err = unmarshalTimestamp(body)
		case FieldSensorViewSensorID:
			sv.SensorID, err = unmarshalIdentifier(body)
		case FieldSensorViewGlobalGroundTruth:
			sv.GlobalGroundTruth, err = UnmarshalGroundTruth(body)
		case FieldSensorViewHostVehicleID:
			sv.HostVehicleID, err = unmarshalIdentifier(body)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return sv, nil
}

// FrameTime reads the top-level timestamp of a raw serialized frame
// without decoding the rest of it. Every OSI top-level message keeps its
// timestamp in field 2, so this works for GroundTruth, SensorView and
// the other trace message types alike.
func FrameTime(frame []byte) (float64, error) {
	var ts *Timestamp
	err := scan(frame, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num != FieldGroundTruthTimestamp || typ != protowire.BytesType || ts != nil {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		ts, err = unmarshalTimestamp(body)
		return err
	})
	if err != nil {
		return 0, err
	}
	return ts.Float64(), nil
}

// FrameVersion reads the top-level interface version of a raw frame,
// field 1 in every versioned OSI top-level message. It returns nil when
// the frame carries no version.
func FrameVersion(frame []byte) (*InterfaceVersion, error) {
	var v *InterfaceVersion
	err := scan(frame, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num != FieldGroundTruthVersion || typ != protowire.BytesType || v != nil {
			return nil
		}
		body, err := fieldBytes(payload)
		if err != nil {
			return err
		}
		v, err = unmarshalInterfaceVersion(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// MarshalInterfaceVersion encodes v as a bare osi3.InterfaceVersion body
// for callers that splice messages together at the wire level.
func MarshalInterfaceVersion(v InterfaceVersion) []byte {
	return appendInterfaceVersion(nil, &v)
}

// MarshalIdentifierValue encodes an osi3.Identifier body holding value.
func MarshalIdentifierValue(value uint64) []byte {
	return appendIdentifier(nil, &Identifier{Value: value})
}

// MarshalTimestamp encodes t as a bare osi3.Timestamp body.
func MarshalTimestamp(t *Timestamp) []byte {
	return appendTimestamp(nil, t)
}

// AppendField appends one field with an already-encoded value payload,
// as produced by VisitFields.
func AppendField(b []byte, num protowire.Number, typ protowire.Type, payload []byte) []byte {
	b = protowire.AppendTag(b, num, typ)
	return append(b, payload...)
}

// AppendMessageField appends a length-delimited field wrapping body.
func AppendMessageField(b []byte, num protowire.Number, body []byte) []byte {
	return appendMessage(b, num, body)
}

// VisitFields walks the top-level fields of a serialized message,
// passing each field's number, wire type and raw value encoding to fn.
// It is the wire-level traversal used by trace filtering operations that
// must preserve fields this package does not model.
func VisitFields(b []byte, fn func(num protowire.Number, typ protowire.Type, payload []byte) error) error {
	return scan(b, fn)
}

// MessageFieldBody strips the length prefix from a BytesType payload as
// handed out by VisitFields.
func MessageFieldBody(payload []byte) ([]byte, error) {
	return fieldBytes(payload)
}

// MarshalSensorView encodes sv as a serialized osi3.SensorView message.
func MarshalSensorView(sv *SensorView) []byte {
	var b []byte
	if sv.Version != nil {
		b = appendMessage(b, FieldSensorViewVersion, appendInterfaceVersion(nil, sv.Version))
	}
	if sv.Timestamp != nil {
		b = appendMessage(b, FieldSensorViewTimestamp, appendTimestamp(nil, sv.Timestamp))
	}
	if sv.SensorID != nil {
		b = appendMessage(b, FieldSensorViewSensorID, appendIdentifier(nil, sv.SensorID))
	}
	if sv.GlobalGroundTruth != nil {
		b = appendMessage(b, FieldSensorViewGlobalGroundTruth, MarshalGroundTruth(sv.GlobalGroundTruth))
	}
	if sv.HostVehicleID != nil {
		b = appendMessage(b, FieldSensorViewHostVehicleID, appendIdentifier(nil, sv.HostVehicleID))
	}
	return b
}
