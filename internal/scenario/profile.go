package scenario

import (
	"fmt"

	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// Profile names a target engine's accommodation set. Accommodations
// are pure document transforms applied after the base build, keeping
// the base emitter engine-agnostic and each accommodation testable on
// its own.
type Profile int

const (
	// ProfileNone emits the plain subset document.
	ProfileNone Profile = iota
	// ProfileInitActions adds a teleport-to-start init action per
	// entity, for engines that refuse to move entities that were never
	// explicitly spawned.
	ProfileInitActions
	// ProfileRoadNetworkEgo references a road network, attaches an
	// empty properties block to every vehicle and renames the host
	// entity to "Ego", for engines that require all three.
	ProfileRoadNetworkEgo
)

func (p Profile) String() string {
	switch p {
	case ProfileInitActions:
		return "init-actions"
	case ProfileRoadNetworkEgo:
		return "road-network-ego"
	}
	return "none"
}

// ParseProfile resolves a profile name as written in configuration
// files and flags.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "none":
		return ProfileNone, nil
	case "init-actions":
		return ProfileInitActions, nil
	case "road-network-ego":
		return ProfileRoadNetworkEgo, nil
	}
	return ProfileNone, fmt.Errorf("unknown engine profile %q", s)
}

func applyProfile(doc *Document, tracks []*trajectory.ObjectTrack, opts BuildOptions) error {
	switch opts.Profile {
	case ProfileInitActions:
		AddInitTeleports(doc)
	case ProfileRoadNetworkEgo:
		if opts.RoadNetwork == "" {
			return &SchemaViolationError{
				Element: "RoadNetwork",
				Reason:  "road-network-ego profile requires a road network file",
			}
		}
		AddEmptyProperties(doc)
		host := tracks[0]
		for _, tr := range tracks {
			if tr.Host {
				host = tr
				break
			}
		}
		RenameEntity(doc, entityName(host.ID), EgoName)
	}
	return nil
}

// AddInitTeleports appends one teleport action per entity to the init
// block, placing each entity at its first trajectory vertex.
func AddInitTeleports(doc *Document) {
	for _, act := range doc.Storyboard.Story.Acts {
		for _, mg := range act.ManeuverGroups {
			if len(mg.Actors.EntityRefs) == 0 {
				continue
			}
			v := firstVertex(mg)
			if v == nil {
				continue
			}
			doc.Storyboard.Init.Actions.Privates = append(doc.Storyboard.Init.Actions.Privates, Private{
				EntityRef: mg.Actors.EntityRefs[0].EntityRef,
				PrivateActions: []PrivateAction{{
					TeleportAction: &TeleportAction{Position: v.Position},
				}},
			})
		}
	}
}

func firstVertex(mg ManeuverGroup) *Vertex {
	for _, m := range mg.Maneuvers {
		for _, e := range m.Events {
			for _, a := range e.Actions {
				ra := a.PrivateAction.RoutingAction
				if ra == nil {
					continue
				}
				vs := ra.FollowTrajectoryAction.TrajectoryRef.Trajectory.Shape.Polyline.Vertices
				if len(vs) > 0 {
					return &vs[0]
				}
			}
		}
	}
	return nil
}

// RenameEntity renames an entity and rewrites every reference to it.
// Derived element names (maneuvers, trajectories) keep their build-time
// labels; the subset treats those as free-form.
func RenameEntity(doc *Document, from, to string) {
	for i := range doc.Entities.ScenarioObjects {
		if doc.Entities.ScenarioObjects[i].Name == from {
			doc.Entities.ScenarioObjects[i].Name = to
		}
	}
	for ai := range doc.Storyboard.Story.Acts {
		act := &doc.Storyboard.Story.Acts[ai]
		for mi := range act.ManeuverGroups {
			refs := act.ManeuverGroups[mi].Actors.EntityRefs
			for ri := range refs {
				if refs[ri].EntityRef == from {
					refs[ri].EntityRef = to
				}
			}
		}
	}
	privates := doc.Storyboard.Init.Actions.Privates
	for pi := range privates {
		if privates[pi].EntityRef == from {
			privates[pi].EntityRef = to
		}
	}
}

// AddEmptyProperties gives every vehicle an empty properties block.
func AddEmptyProperties(doc *Document) {
	for i := range doc.Entities.ScenarioObjects {
		doc.Entities.ScenarioObjects[i].Vehicle.Properties = &Properties{}
	}
}
