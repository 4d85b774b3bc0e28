package trace

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/scenario.report/internal/osi"
)

func frameTimes(t *testing.T, path string) []float64 {
	t.Helper()
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var times []float64
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			return times
		}
		require.NoError(t, err)
		ft, err := osi.FrameTime(frame)
		require.NoError(t, err)
		times = append(times, ft)
	}
}

func TestCropInclusiveWindow(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "full.osi")
	var frames [][]byte
	for i := 0; i < 5; i++ {
		frames = append(frames, gtFrame(float64(i)*0.05, 1))
	}
	writeTrace(t, src, MessageTypeGroundTruth, frames)

	dst := filepath.Join(dir, "window.osi")
	n, err := Crop(src, dst, 0.05, 0.15)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	times := frameTimes(t, dst)
	require.Len(t, times, 3)
	assert.InDelta(t, 0.05, times[0], 1e-9)
	assert.InDelta(t, 0.15, times[2], 1e-9)

	open := filepath.Join(dir, "tail.osi")
	n, err = Crop(src, open, 0.1, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	times = frameTimes(t, open)
	assert.InDelta(t, 0.2, times[len(times)-1], 1e-9)
}

func TestConvertRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "20240221T141700Z_gt_370_293_3_merge.osi")
	frames := [][]byte{gtFrame(0, 1), gtFrame(0.05, 1), gtFrame(0.1, 1)}
	writeTrace(t, src, MessageTypeGroundTruth, frames)

	contained := filepath.Join(dir, "merge.mcap")
	n, err := Convert(src, contained, "MergeRun")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r, err := Open(contained)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeGroundTruth, r.MessageType())
	assert.Equal(t, "MergeRun", r.Topic())
	r.Close()

	back := filepath.Join(dir, "back.osi")
	n, err = Convert(contained, back, "MergeRun")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rb, err := Open(back)
	require.NoError(t, err)
	defer rb.Close()
	require.Equal(t, frames, readAll(t, rb))
}

func TestWrapGroundTruth(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.osi")

	frame := gtFrame(0.05, 7, 9)
	frame = protowire.AppendTag(frame, 25, protowire.VarintType)
	frame = protowire.AppendVarint(frame, 42)
	writeTrace(t, src, MessageTypeGroundTruth, [][]byte{frame})

	dst := filepath.Join(dir, "wrapped.osi")
	n, err := WrapGroundTruth(src, dst, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := Open(dst)
	require.NoError(t, err)
	defer r.Close()

	raw, err := r.Next()
	require.NoError(t, err)
	sv, err := osi.UnmarshalSensorView(raw)
	require.NoError(t, err)
	require.NotNil(t, sv.HostVehicleID)
	assert.Equal(t, uint64(1), sv.HostVehicleID.Value)
	require.NotNil(t, sv.Version)
	assert.Equal(t, osi.CurrentVersion, *sv.Version)
	assert.InDelta(t, 0.05, sv.Timestamp.Float64(), 1e-9)

	gt := sv.GlobalGroundTruth
	require.NotNil(t, gt)
	assert.Equal(t, uint64(1), gt.HostVehicleID.Value)
	assert.Equal(t, osi.CurrentVersion, *gt.Version)
	require.Len(t, gt.MovingObjects, 2)
	assert.Equal(t, uint64(1), gt.MovingObjects[0].ID.Value)
	assert.Equal(t, uint64(2), gt.MovingObjects[1].ID.Value)
	// Renumbering touches IDs only.
	assert.InDelta(t, 7, gt.MovingObjects[0].Base.Position.X, 1e-9)
	assert.InDelta(t, 9, gt.MovingObjects[1].Base.Position.X, 1e-9)

	// The unmodeled field inside the ground truth survives the rewrite.
	assert.True(t, hasWireField(t, embeddedGroundTruth(t, raw), 25))
}

func TestStripRemovesRoadDescription(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "full.osi")

	frame := gtFrame(0, 1, 2)
	frame = osi.AppendMessageField(frame, osi.FieldGroundTruthLane, osi.MarshalIdentifierValue(3))
	frame = osi.AppendMessageField(frame, osi.FieldGroundTruthLaneBoundary, osi.MarshalIdentifierValue(4))
	frame = protowire.AppendTag(frame, 25, protowire.VarintType)
	frame = protowire.AppendVarint(frame, 42)
	writeTrace(t, src, MessageTypeGroundTruth, [][]byte{frame})

	dst := filepath.Join(dir, "stripped.osi")
	n, err := Strip(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := Open(dst)
	require.NoError(t, err)
	defer r.Close()
	raw, err := r.Next()
	require.NoError(t, err)

	assert.False(t, hasWireField(t, raw, osi.FieldGroundTruthLane))
	assert.False(t, hasWireField(t, raw, osi.FieldGroundTruthLaneBoundary))
	assert.True(t, hasWireField(t, raw, 25))

	gt, err := osi.UnmarshalGroundTruth(raw)
	require.NoError(t, err)
	require.Len(t, gt.MovingObjects, 2)
}

func TestStripSensorViewKeepsEnvelope(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "view.osi")

	gt := gtFrame(0, 1)
	gt = osi.AppendMessageField(gt, osi.FieldGroundTruthLane, osi.MarshalIdentifierValue(3))
	var sv []byte
	sv = osi.AppendMessageField(sv, osi.FieldSensorViewTimestamp, osi.MarshalTimestamp(osi.TimestampFromSeconds(0)))
	sv = osi.AppendMessageField(sv, osi.FieldSensorViewGlobalGroundTruth, gt)
	sv = osi.AppendMessageField(sv, osi.FieldSensorViewHostVehicleID, osi.MarshalIdentifierValue(1))
	writeTrace(t, src, MessageTypeSensorView, [][]byte{sv})

	dst := filepath.Join(dir, "lean.osi")
	_, err := Strip(src, dst)
	require.NoError(t, err)

	r, err := Open(dst)
	require.NoError(t, err)
	defer r.Close()
	raw, err := r.Next()
	require.NoError(t, err)

	assert.False(t, hasWireField(t, embeddedGroundTruth(t, raw), osi.FieldGroundTruthLane))
	view, err := osi.UnmarshalSensorView(raw)
	require.NoError(t, err)
	require.NotNil(t, view.HostVehicleID)
	assert.Equal(t, uint64(1), view.HostVehicleID.Value)
	require.Len(t, view.GlobalGroundTruth.MovingObjects, 1)
}

func TestWrapRejectsNonGroundTruth(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "20240221T141700Z_sd_370_293_1_radar.osi")
	writeTrace(t, src, MessageTypeSensorData, [][]byte{gtFrame(0, 1)})

	_, err := WrapGroundTruth(src, filepath.Join(dir, "out.osi"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ground truth")
}

// embeddedGroundTruth digs the global ground truth body out of a raw
// sensor view frame.
func embeddedGroundTruth(t *testing.T, sv []byte) []byte {
	t.Helper()
	var body []byte
	err := osi.VisitFields(sv, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num == osi.FieldSensorViewGlobalGroundTruth && typ == protowire.BytesType && body == nil {
			b, err := osi.MessageFieldBody(payload)
			if err != nil {
				return err
			}
			body = b
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, body)
	return body
}

func hasWireField(t *testing.T, msg []byte, field protowire.Number) bool {
	t.Helper()
	found := false
	err := osi.VisitFields(msg, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num == field {
			found = true
		}
		return nil
	})
	require.NoError(t, err)
	return found
}
