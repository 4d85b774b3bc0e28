package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// behavior digs out the follow-trajectory action of act i.
func behavior(doc *Document, i int) *FollowTrajectoryAction {
	return &doc.Storyboard.Story.Acts[i].ManeuverGroups[0].Maneuvers[0].
		Events[0].Actions[0].PrivateAction.RoutingAction.FollowTrajectoryAction
}

func TestValidateAcceptsBuiltDocuments(t *testing.T) {
	t.Parallel()

	for _, opts := range []BuildOptions{
		{},
		{Profile: ProfileInitActions},
		{Profile: ProfileRoadNetworkEgo, RoadNetwork: "town01.xodr"},
		{StopMode: StopOnStoryDone},
	} {
		doc, err := Build(replayTracks(), opts)
		require.NoError(t, err)
		assert.NoError(t, Validate(doc))
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Document)
		element string
	}{
		{"no entities", func(d *Document) {
			d.Entities.ScenarioObjects = nil
		}, "Entities"},
		{"unnamed entity", func(d *Document) {
			d.Entities.ScenarioObjects[0].Name = ""
		}, "ScenarioObject"},
		{"duplicate entity", func(d *Document) {
			d.Entities.ScenarioObjects[1].Name = d.Entities.ScenarioObjects[0].Name
		}, "ScenarioObject"},
		{"unnamed vehicle", func(d *Document) {
			d.Entities.ScenarioObjects[0].Vehicle.Name = ""
		}, "Vehicle"},
		{"missing category", func(d *Document) {
			d.Entities.ScenarioObjects[0].Vehicle.VehicleCategory = ""
		}, "Vehicle"},
		{"zero dimension", func(d *Document) {
			d.Entities.ScenarioObjects[0].Vehicle.BoundingBox.Dimensions.Width = 0
		}, "BoundingBox"},
		{"missing performance", func(d *Document) {
			d.Entities.ScenarioObjects[0].Vehicle.Performance.MaxSpeed = 0
		}, "Performance"},
		{"zero wheel diameter", func(d *Document) {
			d.Entities.ScenarioObjects[0].Vehicle.Axles.RearAxle.WheelDiameter = 0
		}, "Axles"},
		{"unnamed story", func(d *Document) {
			d.Storyboard.Story.Name = ""
		}, "Story"},
		{"no acts", func(d *Document) {
			d.Storyboard.Story.Acts = nil
		}, "Story"},
		{"two maneuver groups", func(d *Document) {
			act := &d.Storyboard.Story.Acts[0]
			act.ManeuverGroups = append(act.ManeuverGroups, act.ManeuverGroups[0])
		}, "Act"},
		{"repeating group", func(d *Document) {
			d.Storyboard.Story.Acts[0].ManeuverGroups[0].MaximumExecutionCount = 2
		}, "ManeuverGroup"},
		{"no actors", func(d *Document) {
			d.Storyboard.Story.Acts[0].ManeuverGroups[0].Actors.EntityRefs = nil
		}, "Actors"},
		{"unknown actor", func(d *Document) {
			d.Storyboard.Story.Acts[0].ManeuverGroups[0].Actors.EntityRefs[0].EntityRef = "ghost"
		}, "Actors"},
		{"second behavior for one entity", func(d *Document) {
			d.Storyboard.Story.Acts[1].ManeuverGroups[0].Actors.EntityRefs[0].EntityRef =
				d.Entities.ScenarioObjects[0].Name
		}, "Story"},
		{"two maneuvers", func(d *Document) {
			mg := &d.Storyboard.Story.Acts[0].ManeuverGroups[0]
			mg.Maneuvers = append(mg.Maneuvers, mg.Maneuvers[0])
		}, "ManeuverGroup"},
		{"two events", func(d *Document) {
			m := &d.Storyboard.Story.Acts[0].ManeuverGroups[0].Maneuvers[0]
			m.Events = append(m.Events, m.Events[0])
		}, "Maneuver"},
		{"wrong priority", func(d *Document) {
			d.Storyboard.Story.Acts[0].ManeuverGroups[0].Maneuvers[0].Events[0].Priority = "parallel"
		}, "Event"},
		{"teleport instead of trajectory", func(d *Document) {
			a := &d.Storyboard.Story.Acts[0].ManeuverGroups[0].Maneuvers[0].Events[0].Actions[0]
			a.PrivateAction = PrivateAction{TeleportAction: &TeleportAction{}}
		}, "Action"},
		{"relative time domain", func(d *Document) {
			behavior(d, 0).TimeReference.Timing.DomainAbsoluteRelative = "relative"
		}, "Timing"},
		{"scaled timing", func(d *Document) {
			behavior(d, 0).TimeReference.Timing.Scale = 2
		}, "Timing"},
		{"shifted timing", func(d *Document) {
			behavior(d, 0).TimeReference.Timing.Offset = 0.5
		}, "Timing"},
		{"follow mode", func(d *Document) {
			behavior(d, 0).TrajectoryFollowingMode.FollowingMode = "follow"
		}, "TrajectoryFollowingMode"},
		{"empty polyline", func(d *Document) {
			behavior(d, 0).TrajectoryRef.Trajectory.Shape.Polyline.Vertices = nil
		}, "Polyline"},
		{"vertex time repeat", func(d *Document) {
			vs := behavior(d, 0).TrajectoryRef.Trajectory.Shape.Polyline.Vertices
			vs[2].Time = vs[1].Time
		}, "Polyline"},
		{"vertex time reversal", func(d *Document) {
			vs := behavior(d, 0).TrajectoryRef.Trajectory.Shape.Polyline.Vertices
			vs[1].Time = 0.2
		}, "Polyline"},
		{"init for unknown entity", func(d *Document) {
			d.Storyboard.Init.Actions.Privates = append(d.Storyboard.Init.Actions.Privates,
				Private{EntityRef: "ghost"})
		}, "Init"},
		{"no stop trigger", func(d *Document) {
			d.Storyboard.StopTrigger.ConditionGroups = nil
		}, "StopTrigger"},
		{"empty condition group", func(d *Document) {
			d.Storyboard.StopTrigger.ConditionGroups[0].Conditions = nil
		}, "StopTrigger"},
		{"condition without variant", func(d *Document) {
			d.Storyboard.StopTrigger.ConditionGroups[0].Conditions[0].ByValueCondition = &ByValueCondition{}
		}, "Condition"},
		{"condition with both variants", func(d *Document) {
			bv := d.Storyboard.StopTrigger.ConditionGroups[0].Conditions[0].ByValueCondition
			bv.StoryboardElementStateCondition = &StoryboardElementStateCondition{
				StoryboardElementType: "story",
				StoryboardElementRef:  "Story1",
				State:                 "completeState",
			}
		}, "Condition"},
		{"state condition for unknown story", func(d *Document) {
			d.Storyboard.StopTrigger.ConditionGroups[0].Conditions[0].ByValueCondition = &ByValueCondition{
				StoryboardElementStateCondition: &StoryboardElementStateCondition{
					StoryboardElementType: "story",
					StoryboardElementRef:  "Story9",
					State:                 "completeState",
				},
			}
		}, "Condition"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Build(replayTracks(), BuildOptions{})
			require.NoError(t, err)

			tc.mutate(doc)
			err = Validate(doc)
			var sve *SchemaViolationError
			require.ErrorAs(t, err, &sve)
			assert.Equal(t, tc.element, sve.Element)
			assert.NotEmpty(t, sve.Reason)
		})
	}
}

func TestSchemaViolationErrorMessage(t *testing.T) {
	t.Parallel()

	err := &SchemaViolationError{Element: "Polyline", Reason: "empty polyline in \"x\""}
	assert.Equal(t, `schema violation at Polyline: empty polyline in "x"`, err.Error())
}
