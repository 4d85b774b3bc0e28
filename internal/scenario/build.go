package scenario

import (
	"fmt"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/osi"
	"github.com/banshee-data/scenario.report/internal/timeutil"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// Placeholder values for vehicle attributes that have no source in a
// trace. Callers may override the performance block and track width;
// the rest comes from the trace or stays at these values.
const (
	DefaultMaxAcceleration = 4.0
	DefaultMaxDeceleration = 9.0
	DefaultMaxSpeed        = 250.0
	DefaultMaxSteering     = 0.5
	DefaultTrackWidth      = 1.63
	DefaultWheelDiameter   = 0.8
	DefaultFrontAxleX      = 2.7
)

// DefaultAuthor is the file header author unless overridden.
const DefaultAuthor = "scenario.report converter"

// EgoName is the distinguished entity name for engines with an ego
// concept.
const EgoName = "Ego"

const (
	storyName        = "Story1"
	headerDateLayout = "2006-01-02T15:04:05"
)

// StopMode selects the stop trigger variant.
type StopMode int

const (
	// StopAtEnd bounds execution with a simulation-time condition at
	// the last trajectory timestamp.
	StopAtEnd StopMode = iota
	// StopOnStoryDone stops once the story reports complete.
	StopOnStoryDone
)

// BuildOptions configure document emission.
type BuildOptions struct {
	Profile     Profile
	RoadNetwork string // OpenDRIVE file referenced by the document
	Author      string
	Description string
	StopMode    StopMode
	Performance *Performance // overrides the placeholder limits
	TrackWidth  float64      // overrides the placeholder axle track width
	Clock       timeutil.Clock
}

// Build renders tracks as a scenario document: one vehicle entity and
// one follow-trajectory behavior per track, a single story, and a stop
// trigger bounded by the longest trajectory. The profile transform is
// applied before returning, and the result is validated so that no
// caller ever holds a non-conforming document.
func Build(tracks []*trajectory.ObjectTrack, opts BuildOptions) (*Document, error) {
	if len(tracks) == 0 {
		return nil, &SchemaViolationError{Element: "Entities", Reason: "no object tracks to emit"}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	author := opts.Author
	if author == "" {
		author = DefaultAuthor
	}
	perf := Performance{
		MaxAcceleration: DefaultMaxAcceleration,
		MaxDeceleration: DefaultMaxDeceleration,
		MaxSpeed:        DefaultMaxSpeed,
	}
	if opts.Performance != nil {
		perf = *opts.Performance
	}
	trackWidth := opts.TrackWidth
	if trackWidth == 0 {
		trackWidth = DefaultTrackWidth
	}

	doc := &Document{
		FileHeader: FileHeader{
			RevMajor:    1,
			RevMinor:    3,
			Date:        clock.Now().Format(headerDateLayout),
			Author:      author,
			Description: opts.Description,
		},
	}
	if opts.RoadNetwork != "" {
		doc.RoadNetwork.LogicFile = &LogicFile{Filepath: opts.RoadNetwork}
	}

	stop := 0.0
	for _, tr := range tracks {
		if len(tr.Samples) == 0 {
			return nil, &SchemaViolationError{
				Element: entityName(tr.ID),
				Reason:  "track has no samples",
			}
		}
		if end := tr.End().T; end > stop {
			stop = end
		}
		doc.Entities.ScenarioObjects = append(doc.Entities.ScenarioObjects,
			buildEntity(tr, perf, trackWidth))
		doc.Storyboard.Story.Acts = append(doc.Storyboard.Story.Acts, buildAct(tr))
	}

	doc.Storyboard.Story.Name = storyName
	doc.Storyboard.StopTrigger = buildStopTrigger(opts.StopMode, stop)

	if err := applyProfile(doc, tracks, opts); err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func entityName(id uint64) string {
	return fmt.Sprintf("osi_moving_object_%d", id)
}

func vehicleName(id uint64) string {
	return fmt.Sprintf("osi_moving_object_vehicle_%d", id)
}

func buildEntity(tr *trajectory.ObjectTrack, perf Performance, trackWidth float64) ScenarioObject {
	wheelDiameter := DefaultWheelDiameter
	if tr.WheelRadius > 0 {
		wheelDiameter = 2 * tr.WheelRadius
	}
	frontX := DefaultFrontAxleX
	if tr.BBCenterToFront != nil {
		frontX = tr.BBCenterToFront.X - tr.BBCenterToRear.X
	}
	axle := Axle{
		MaxSteering:   DefaultMaxSteering,
		PositionZ:     Float(wheelDiameter / 2),
		TrackWidth:    Float(trackWidth),
		WheelDiameter: Float(wheelDiameter),
	}
	front := axle
	front.PositionX = Float(frontX)

	return ScenarioObject{
		Name: entityName(tr.ID),
		Vehicle: Vehicle{
			Name:            vehicleName(tr.ID),
			VehicleCategory: vehicleCategory(tr.VehicleType),
			BoundingBox: BoundingBox{
				Center: Center{
					X: Float(tr.BBCenterToRear.X),
					Y: Float(tr.BBCenterToRear.Y),
					Z: Float(tr.BBCenterToRear.Z),
				},
				Dimensions: Dimensions{
					Height: Float(tr.Dimension.Height),
					Length: Float(tr.Dimension.Length),
					Width:  Float(tr.Dimension.Width),
				},
			},
			Performance: perf,
			Axles:       Axles{FrontAxle: front, RearAxle: axle},
		},
	}
}

// vehicleCategory maps the trace classification onto the scenario
// category vocabulary. Passenger car classes collapse to "car", which
// is also the fallback for classes the vocabulary does not cover.
func vehicleCategory(t osi.VehicleType) string {
	switch t {
	case osi.VehicleTypeDeliveryVan:
		return "van"
	case osi.VehicleTypeHeavyTruck:
		return "truck"
	case osi.VehicleTypeSemitrailer:
		return "semitrailer"
	case osi.VehicleTypeTrailer:
		return "trailer"
	case osi.VehicleTypeMotorbike:
		return "motorbike"
	case osi.VehicleTypeBicycle:
		return "bicycle"
	case osi.VehicleTypeBus:
		return "bus"
	case osi.VehicleTypeTram:
		return "tram"
	case osi.VehicleTypeTrain:
		return "train"
	}
	return "car"
}

func buildAct(tr *trajectory.ObjectTrack) Act {
	entity := entityName(tr.ID)
	vehicle := vehicleName(tr.ID)

	vertices := make([]Vertex, len(tr.Samples))
	for i, s := range tr.Samples {
		vertices[i] = Vertex{
			Time:     Float(s.T),
			Position: Position{WorldPosition: worldPosition(s, tr.BBCenterToRear)},
		}
	}

	return Act{
		Name: vehicle + "_act",
		ManeuverGroups: []ManeuverGroup{{
			Name:                  vehicle + "_maneuvergroup",
			MaximumExecutionCount: 1,
			Actors: Actors{
				SelectTriggeringEntities: false,
				EntityRefs:               []EntityRef{{EntityRef: entity}},
			},
			Maneuvers: []Maneuver{{
				Name: entity + "_maneuver",
				Events: []Event{{
					Name:     entity + "_maneuver_event",
					Priority: "override",
					Actions: []Action{{
						Name: entity + "_maneuver_event_action",
						PrivateAction: PrivateAction{
							RoutingAction: &RoutingAction{
								FollowTrajectoryAction: FollowTrajectoryAction{
									TrajectoryRef: TrajectoryRef{
										Trajectory: Trajectory{
											Name:   vehicle + "_trajectory",
											Closed: false,
											Shape: Shape{
												Polyline: Polyline{Vertices: vertices},
											},
										},
									},
									TimeReference: TimeReference{
										Timing: Timing{
											DomainAbsoluteRelative: "absolute",
											Offset:                 0,
											Scale:                  1,
										},
									},
									TrajectoryFollowingMode: TrajectoryFollowingMode{
										FollowingMode: "position",
									},
								},
							},
						},
					}},
				}},
			}},
		}},
	}
}

// worldPosition converts a bounding-box-center pose into the vehicle
// reference point the scenario format expects, which sits at the rear
// axle: the rear offset is rotated into the world frame and subtracted.
func worldPosition(s trajectory.Sample, rear geom.Vec3) WorldPosition {
	p := s.Position.Sub(geom.RotateXYZ(rear, s.Orientation))
	return WorldPosition{
		X: Float(p.X),
		Y: Float(p.Y),
		Z: Float(p.Z),
		H: Float(s.Orientation.Yaw),
		P: Float(s.Orientation.Pitch),
		R: Float(s.Orientation.Roll),
	}
}

func buildStopTrigger(mode StopMode, stop float64) StopTrigger {
	var cond Condition
	switch mode {
	case StopOnStoryDone:
		cond = Condition{
			Name:          "QuitCondition",
			Delay:         0,
			ConditionEdge: "rising",
			ByValueCondition: &ByValueCondition{
				StoryboardElementStateCondition: &StoryboardElementStateCondition{
					StoryboardElementType: "story",
					StoryboardElementRef:  storyName,
					State:                 "completeState",
				},
			},
		}
	default:
		cond = Condition{
			Name:          "End",
			Delay:         0,
			ConditionEdge: "rising",
			ByValueCondition: &ByValueCondition{
				SimulationTimeCondition: &SimulationTimeCondition{
					Value: Float(stop),
					Rule:  "greaterThan",
				},
			},
		}
	}
	return StopTrigger{
		ConditionGroups: []ConditionGroup{{Conditions: []Condition{cond}}},
	}
}
