// Package osi implements the subset of the ASAM Open Simulation Interface
// (OSI) message model that scenario conversion and trajectory validation
// need: GroundTruth and SensorView top-level messages with their moving
// objects, plus the common types they reference.
//
// Messages are decoded from and encoded to standard protobuf wire format
// (see wire.go) without generated code, so the package stays decoupled
// from any particular OSI release. Fields outside the subset are skipped
// on decode.
package osi

import (
	"fmt"

	"github.com/banshee-data/scenario.report/internal/geom"
)

// CurrentVersion is the OSI interface version stamped onto messages this
// module synthesizes itself (trace generation, GroundTruth wrapping).
var CurrentVersion = InterfaceVersion{Major: 3, Minor: 7, Patch: 0}

// InterfaceVersion identifies the OSI release a message was written
// against.
type InterfaceVersion struct {
	Major uint32
	Minor uint32
	Patch uint32
}

func (v InterfaceVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Timestamp is a simulation instant as seconds plus nanoseconds since the
// start of the simulation.
type Timestamp struct {
	Seconds int64
	Nanos   uint32
}

// Float64 returns the timestamp as fractional seconds.
func (t *Timestamp) Float64() float64 {
	if t == nil {
		return 0
	}
	return (float64(t.Seconds)*1e9 + float64(t.Nanos)) / 1e9
}

// TimestampFromSeconds splits fractional seconds into an OSI timestamp.
func TimestampFromSeconds(s float64) *Timestamp {
	sec := int64(s)
	if s < 0 && float64(sec) != s {
		sec--
	}
	return &Timestamp{
		Seconds: sec,
		Nanos:   uint32((s - float64(sec)) * 1e9),
	}
}

// Identifier is an object ID unique within one ground-truth stream.
type Identifier struct {
	Value uint64
}

// ObjectType classifies a moving object.
type ObjectType int32

const (
	ObjectTypeUnknown    ObjectType = 0
	ObjectTypeOther      ObjectType = 1
	ObjectTypeVehicle    ObjectType = 2
	ObjectTypePedestrian ObjectType = 3
	ObjectTypeAnimal     ObjectType = 4
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeUnknown:
		return "unknown"
	case ObjectTypeOther:
		return "other"
	case ObjectTypeVehicle:
		return "vehicle"
	case ObjectTypePedestrian:
		return "pedestrian"
	case ObjectTypeAnimal:
		return "animal"
	}
	return fmt.Sprintf("ObjectType(%d)", int32(t))
}

// VehicleType is the finer-grained vehicle classification.
type VehicleType int32

const (
	VehicleTypeUnknown     VehicleType = 0
	VehicleTypeOther       VehicleType = 1
	VehicleTypeSmallCar    VehicleType = 2
	VehicleTypeCompactCar  VehicleType = 3
	VehicleTypeMediumCar   VehicleType = 4
	VehicleTypeLuxuryCar   VehicleType = 5
	VehicleTypeDeliveryVan VehicleType = 6
	VehicleTypeHeavyTruck  VehicleType = 7
	VehicleTypeSemitrailer VehicleType = 8
	VehicleTypeTrailer     VehicleType = 9
	VehicleTypeMotorbike   VehicleType = 10
	VehicleTypeBicycle     VehicleType = 11
	VehicleTypeBus         VehicleType = 12
	VehicleTypeTram        VehicleType = 13
	VehicleTypeTrain       VehicleType = 14
	VehicleTypeWheelchair  VehicleType = 15
)

// BaseMoving carries the pose and extent shared by all moving objects.
// Position is the center of the bounding box in world coordinates.
type BaseMoving struct {
	Dimension   *geom.Dim3
	Position    *geom.Vec3
	Orientation *geom.Euler
	Velocity    *geom.Vec3
}

// VehicleAttributes holds the vehicle-specific geometry used to derive
// the scenario reference point.
type VehicleAttributes struct {
	DriverID        *Identifier
	RadiusWheel     float64
	NumberWheels    uint32
	BBCenterToRear  *geom.Vec3
	BBCenterToFront *geom.Vec3
}

// VehicleClassification refines ObjectTypeVehicle.
type VehicleClassification struct {
	Type VehicleType
}

// MovingObject is one dynamic object in a ground-truth frame.
type MovingObject struct {
	ID                    *Identifier
	Base                  *BaseMoving
	Type                  ObjectType
	VehicleAttributes     *VehicleAttributes
	VehicleClassification *VehicleClassification
}

// BaseStationary is the static-object counterpart of BaseMoving.
type BaseStationary struct {
	Dimension   *geom.Dim3
	Position    *geom.Vec3
	Orientation *geom.Euler
}

// StationaryObject is one static object in a ground-truth frame. Only
// identity and pose are decoded; classification is skipped.
type StationaryObject struct {
	ID   *Identifier
	Base *BaseStationary
}

// GroundTruth is one frame of the world state.
type GroundTruth struct {
	Version           *InterfaceVersion
	Timestamp         *Timestamp
	HostVehicleID     *Identifier
	StationaryObjects []*StationaryObject
	MovingObjects     []*MovingObject
}

// SensorView wraps a ground-truth frame with the identity of the sensor
// that observed it.
type SensorView struct {
	Version           *InterfaceVersion
	Timestamp         *Timestamp
	SensorID          *Identifier
	GlobalGroundTruth *GroundTruth
	HostVehicleID     *Identifier
}

// GroundTruthOf returns the ground truth embedded in a sensor view, or
// nil if absent.
func (sv *SensorView) GroundTruthOf() *GroundTruth {
	if sv == nil {
		return nil
	}
	return sv.GlobalGroundTruth
}
