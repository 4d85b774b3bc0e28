package scenario

import "fmt"

// SchemaViolationError reports a document that would break the subset's
// structural constraints. Emission never writes a file after one.
type SchemaViolationError struct {
	Element string
	Reason  string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Element, e.Reason)
}

// Validate checks the structural constraints of the subset: one story,
// exactly one behavior per entity, absolute unit time reference,
// position-mode polyline following, strictly increasing vertex times
// and resolvable entity references. It does not replace an external
// schema checker; it guarantees the invariants the converter promises.
func Validate(doc *Document) error {
	violation := func(element, format string, args ...interface{}) error {
		return &SchemaViolationError{Element: element, Reason: fmt.Sprintf(format, args...)}
	}

	if len(doc.Entities.ScenarioObjects) == 0 {
		return violation("Entities", "at least one entity required")
	}
	names := make(map[string]bool, len(doc.Entities.ScenarioObjects))
	for _, so := range doc.Entities.ScenarioObjects {
		if so.Name == "" {
			return violation("ScenarioObject", "entity name missing")
		}
		if names[so.Name] {
			return violation("ScenarioObject", "duplicate entity %q", so.Name)
		}
		names[so.Name] = true

		v := so.Vehicle
		if v.Name == "" {
			return violation("Vehicle", "vehicle name missing on %q", so.Name)
		}
		if v.VehicleCategory == "" {
			return violation("Vehicle", "vehicle category missing on %q", so.Name)
		}
		d := v.BoundingBox.Dimensions
		if d.Length <= 0 || d.Width <= 0 || d.Height <= 0 {
			return violation("BoundingBox", "non-positive dimensions on %q", so.Name)
		}
		p := v.Performance
		if p.MaxAcceleration <= 0 || p.MaxDeceleration <= 0 || p.MaxSpeed <= 0 {
			return violation("Performance", "placeholder limits missing on %q", so.Name)
		}
		if v.Axles.FrontAxle.WheelDiameter <= 0 || v.Axles.RearAxle.WheelDiameter <= 0 {
			return violation("Axles", "non-positive wheel diameter on %q", so.Name)
		}
	}

	story := doc.Storyboard.Story
	if story.Name == "" {
		return violation("Story", "story name missing")
	}
	if len(story.Acts) == 0 {
		return violation("Story", "no acts")
	}
	behaviors := make(map[string]int, len(names))
	for _, act := range story.Acts {
		if len(act.ManeuverGroups) != 1 {
			return violation("Act", "%q must hold exactly one maneuver group", act.Name)
		}
		mg := act.ManeuverGroups[0]
		if mg.MaximumExecutionCount != 1 {
			return violation("ManeuverGroup", "%q must execute exactly once", mg.Name)
		}
		if len(mg.Actors.EntityRefs) != 1 {
			return violation("Actors", "%q must name exactly one entity", mg.Name)
		}
		ref := mg.Actors.EntityRefs[0].EntityRef
		if !names[ref] {
			return violation("Actors", "unknown entity %q", ref)
		}
		behaviors[ref]++
		if len(mg.Maneuvers) != 1 {
			return violation("ManeuverGroup", "%q must hold exactly one maneuver", mg.Name)
		}
		m := mg.Maneuvers[0]
		if len(m.Events) != 1 {
			return violation("Maneuver", "%q must hold exactly one event", m.Name)
		}
		ev := m.Events[0]
		if ev.Priority != "override" {
			return violation("Event", "%q must use override priority", ev.Name)
		}
		if len(ev.Actions) != 1 {
			return violation("Event", "%q must hold exactly one action", ev.Name)
		}
		a := ev.Actions[0]
		ra := a.PrivateAction.RoutingAction
		if ra == nil {
			return violation("Action", "%q carries no follow-trajectory action", a.Name)
		}
		fta := ra.FollowTrajectoryAction
		timing := fta.TimeReference.Timing
		if timing.DomainAbsoluteRelative != "absolute" {
			return violation("Timing", "%q must use the absolute time domain", a.Name)
		}
		if timing.Scale != 1 || timing.Offset != 0 {
			return violation("Timing", "%q must use scale 1 and offset 0", a.Name)
		}
		if fta.TrajectoryFollowingMode.FollowingMode != "position" {
			return violation("TrajectoryFollowingMode", "%q must follow by position", a.Name)
		}
		vs := fta.TrajectoryRef.Trajectory.Shape.Polyline.Vertices
		if len(vs) == 0 {
			return violation("Polyline", "empty polyline in %q", fta.TrajectoryRef.Trajectory.Name)
		}
		for i := 1; i < len(vs); i++ {
			if vs[i].Time <= vs[i-1].Time {
				return violation("Polyline", "vertex times not strictly increasing at index %d in %q",
					i, fta.TrajectoryRef.Trajectory.Name)
			}
		}
	}
	for name := range names {
		if behaviors[name] != 1 {
			return violation("Story", "entity %q must have exactly one behavior, has %d", name, behaviors[name])
		}
	}

	for _, p := range doc.Storyboard.Init.Actions.Privates {
		if !names[p.EntityRef] {
			return violation("Init", "unknown entity %q", p.EntityRef)
		}
	}

	if len(doc.Storyboard.StopTrigger.ConditionGroups) == 0 {
		return violation("StopTrigger", "no stop condition")
	}
	for _, cg := range doc.Storyboard.StopTrigger.ConditionGroups {
		if len(cg.Conditions) == 0 {
			return violation("StopTrigger", "empty condition group")
		}
		for _, c := range cg.Conditions {
			if c.ByValueCondition == nil {
				return violation("Condition", "%q carries no by-value condition", c.Name)
			}
			sim := c.ByValueCondition.SimulationTimeCondition != nil
			state := c.ByValueCondition.StoryboardElementStateCondition != nil
			if sim == state {
				return violation("Condition", "%q must carry exactly one condition variant", c.Name)
			}
			if state {
				sc := c.ByValueCondition.StoryboardElementStateCondition
				if sc.StoryboardElementRef != story.Name {
					return violation("Condition", "%q references unknown story %q", c.Name, sc.StoryboardElementRef)
				}
			}
		}
	}
	return nil
}
