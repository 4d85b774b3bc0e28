// Package scenario renders object tracks as OpenSCENARIO documents
// restricted to the trajectory-replay subset: one story, one
// follow-trajectory behavior per entity, absolute time reference and
// world-position polyline vertices. Engine-specific accommodations are
// applied as document transforms after the base build.
package scenario

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Float is a float64 that always renders in plain decimal notation.
// encoding/xml's default float formatting flips to scientific notation
// at 1e6, which scenario consumers do not all parse.
type Float float64

func (f Float) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: strconv.FormatFloat(float64(f), 'f', -1, 64)}, nil
}

func (f *Float) UnmarshalXMLAttr(attr xml.Attr) error {
	v, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Document is the root of an emitted scenario. Field order matters:
// encoding/xml writes elements in declaration order and the subset
// schema requires it.
type Document struct {
	XMLName          xml.Name         `xml:"OpenSCENARIO"`
	FileHeader       FileHeader       `xml:"FileHeader"`
	CatalogLocations CatalogLocations `xml:"CatalogLocations"`
	RoadNetwork      RoadNetwork      `xml:"RoadNetwork"`
	Entities         Entities         `xml:"Entities"`
	Storyboard       Storyboard       `xml:"Storyboard"`
}

type FileHeader struct {
	RevMajor    int     `xml:"revMajor,attr"`
	RevMinor    int     `xml:"revMinor,attr"`
	Date        string  `xml:"date,attr"`
	Author      string  `xml:"author,attr"`
	Description string  `xml:"description,attr"`
	License     License `xml:"License"`
}

type License struct {
	Name     string `xml:"name,attr"`
	Resource string `xml:"resource,attr"`
}

type CatalogLocations struct{}

type RoadNetwork struct {
	LogicFile *LogicFile `xml:"LogicFile,omitempty"`
}

type LogicFile struct {
	Filepath string `xml:"filepath,attr"`
}

type Entities struct {
	ScenarioObjects []ScenarioObject `xml:"ScenarioObject"`
}

type ScenarioObject struct {
	Name    string  `xml:"name,attr"`
	Vehicle Vehicle `xml:"Vehicle"`
}

type Vehicle struct {
	Name            string      `xml:"name,attr"`
	VehicleCategory string      `xml:"vehicleCategory,attr"`
	BoundingBox     BoundingBox `xml:"BoundingBox"`
	Performance     Performance `xml:"Performance"`
	Axles           Axles       `xml:"Axles"`
	Properties      *Properties `xml:"Properties,omitempty"`
}

type BoundingBox struct {
	Center     Center     `xml:"Center"`
	Dimensions Dimensions `xml:"Dimensions"`
}

type Center struct {
	X Float `xml:"x,attr"`
	Y Float `xml:"y,attr"`
	Z Float `xml:"z,attr"`
}

type Dimensions struct {
	Height Float `xml:"height,attr"`
	Length Float `xml:"length,attr"`
	Width  Float `xml:"width,attr"`
}

type Performance struct {
	MaxAcceleration Float `xml:"maxAcceleration,attr"`
	MaxDeceleration Float `xml:"maxDeceleration,attr"`
	MaxSpeed        Float `xml:"maxSpeed,attr"`
}

type Axles struct {
	FrontAxle Axle `xml:"FrontAxle"`
	RearAxle  Axle `xml:"RearAxle"`
}

type Axle struct {
	MaxSteering   Float `xml:"maxSteering,attr"`
	PositionX     Float `xml:"positionX,attr"`
	PositionZ     Float `xml:"positionZ,attr"`
	TrackWidth    Float `xml:"trackWidth,attr"`
	WheelDiameter Float `xml:"wheelDiameter,attr"`
}

type Properties struct{}

type Storyboard struct {
	Init        Init        `xml:"Init"`
	Story       Story       `xml:"Story"`
	StopTrigger StopTrigger `xml:"StopTrigger"`
}

type Init struct {
	Actions InitActions `xml:"Actions"`
}

type InitActions struct {
	Privates []Private `xml:"Private"`
}

type Private struct {
	EntityRef      string          `xml:"entityRef,attr"`
	PrivateActions []PrivateAction `xml:"PrivateAction"`
}

type PrivateAction struct {
	TeleportAction *TeleportAction `xml:"TeleportAction,omitempty"`
	RoutingAction  *RoutingAction  `xml:"RoutingAction,omitempty"`
}

type TeleportAction struct {
	Position Position `xml:"Position"`
}

type Position struct {
	WorldPosition WorldPosition `xml:"WorldPosition"`
}

type WorldPosition struct {
	X Float `xml:"x,attr"`
	Y Float `xml:"y,attr"`
	Z Float `xml:"z,attr"`
	H Float `xml:"h,attr"`
	P Float `xml:"p,attr"`
	R Float `xml:"r,attr"`
}

type Story struct {
	Name string `xml:"name,attr"`
	Acts []Act  `xml:"Act"`
}

type Act struct {
	Name           string          `xml:"name,attr"`
	ManeuverGroups []ManeuverGroup `xml:"ManeuverGroup"`
}

type ManeuverGroup struct {
	Name                  string     `xml:"name,attr"`
	MaximumExecutionCount int        `xml:"maximumExecutionCount,attr"`
	Actors                Actors     `xml:"Actors"`
	Maneuvers             []Maneuver `xml:"Maneuver"`
}

type Actors struct {
	SelectTriggeringEntities bool        `xml:"selectTriggeringEntities,attr"`
	EntityRefs               []EntityRef `xml:"EntityRef"`
}

type EntityRef struct {
	EntityRef string `xml:"entityRef,attr"`
}

type Maneuver struct {
	Name   string  `xml:"name,attr"`
	Events []Event `xml:"Event"`
}

type Event struct {
	Name     string   `xml:"name,attr"`
	Priority string   `xml:"priority,attr"`
	Actions  []Action `xml:"Action"`
}

type Action struct {
	Name          string        `xml:"name,attr"`
	PrivateAction PrivateAction `xml:"PrivateAction"`
}

type RoutingAction struct {
	FollowTrajectoryAction FollowTrajectoryAction `xml:"FollowTrajectoryAction"`
}

type FollowTrajectoryAction struct {
	TrajectoryRef           TrajectoryRef           `xml:"TrajectoryRef"`
	TimeReference           TimeReference           `xml:"TimeReference"`
	TrajectoryFollowingMode TrajectoryFollowingMode `xml:"TrajectoryFollowingMode"`
}

type TrajectoryRef struct {
	Trajectory Trajectory `xml:"Trajectory"`
}

type Trajectory struct {
	Name   string `xml:"name,attr"`
	Closed bool   `xml:"closed,attr"`
	Shape  Shape  `xml:"Shape"`
}

type Shape struct {
	Polyline Polyline `xml:"Polyline"`
}

type Polyline struct {
	Vertices []Vertex `xml:"Vertex"`
}

type Vertex struct {
	Time     Float    `xml:"time,attr"`
	Position Position `xml:"Position"`
}

type TimeReference struct {
	Timing Timing `xml:"Timing"`
}

type Timing struct {
	DomainAbsoluteRelative string `xml:"domainAbsoluteRelative,attr"`
	Offset                 Float  `xml:"offset,attr"`
	Scale                  Float  `xml:"scale,attr"`
}

type TrajectoryFollowingMode struct {
	FollowingMode string `xml:"followingMode,attr"`
}

type StopTrigger struct {
	ConditionGroups []ConditionGroup `xml:"ConditionGroup"`
}

type ConditionGroup struct {
	Conditions []Condition `xml:"Condition"`
}

type Condition struct {
	Name             string            `xml:"name,attr"`
	Delay            Float             `xml:"delay,attr"`
	ConditionEdge    string            `xml:"conditionEdge,attr"`
	ByValueCondition *ByValueCondition `xml:"ByValueCondition,omitempty"`
}

type ByValueCondition struct {
	SimulationTimeCondition         *SimulationTimeCondition         `xml:"SimulationTimeCondition,omitempty"`
	StoryboardElementStateCondition *StoryboardElementStateCondition `xml:"StoryboardElementStateCondition,omitempty"`
}

type SimulationTimeCondition struct {
	Value Float  `xml:"value,attr"`
	Rule  string `xml:"rule,attr"`
}

type StoryboardElementStateCondition struct {
	StoryboardElementType string `xml:"storyboardElementType,attr"`
	StoryboardElementRef  string `xml:"storyboardElementRef,attr"`
	State                 string `xml:"state,attr"`
}

// Marshal renders the document with the standard XML header and
// two-space indentation.
func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scenario: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// WriteFile validates and renders doc, then writes it atomically: the
// content lands in a temp file in the target directory and is renamed
// into place, so a failed write never leaves a partial document.
func WriteFile(doc *Document, path string) error {
	if err := Validate(doc); err != nil {
		return err
	}
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write scenario: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write scenario: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}
