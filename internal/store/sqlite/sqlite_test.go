package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/store"
	"thermal-annotator/pkg/geometry"
)

func cbox(xc, yc, w, h float64) geometry.CenterBox {
	return geometry.CenterBox{XCenter: xc, YCenter: yc, Width: w, Height: h}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "annotator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fixed := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.PutInspection(context.Background(), anomaly.Inspection{
		ID:            "insp-1",
		InspectionNo:  "INS-001",
		TransformerNo: "TX-42",
		InspectedDate: "2025-03-14",
		Status:        "In progress",
		ImageURL:      "file:///tmp/thermal.png",
	}))
	return s
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	version, dirty, err := MigrateVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, MigrateUp(s.DB()), "migrating an up-to-date database is a no-op")

	require.NoError(t, MigrateDown(s.DB()))
	version, _, err = MigrateVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, MigrateUp(s.DB()))
	version, _, err = MigrateVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestCreateListUpdateDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	ai := anomaly.Anomaly{ID: "det-1", Box: cbox(120, 80, 40, 30), Class: anomaly.ClassLooseJointFaulty, Confidence: 0.92, Origin: anomaly.OriginAI}
	id, err := s.Create(ctx, "insp-1", ai)
	require.NoError(t, err)
	assert.Equal(t, "det-1", id, "imported ids are kept")

	user := anomaly.NewUser(cbox(100, 85, 100, 70), "")
	userID, err := s.Create(ctx, "insp-1", user)
	require.NoError(t, err)
	assert.NotEmpty(t, userID)
	user.ID = userID

	list, err := s.List(ctx, "insp-1")
	require.NoError(t, err)
	if diff := cmp.Diff([]anomaly.Anomaly{ai, user}, list); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.Update(ctx, "insp-1", "det-1", cbox(130, 90, 20, 20), anomaly.ClassPointOverloadFaulty))
	list, err = s.List(ctx, "insp-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, cbox(130, 90, 20, 20), list[0].Box)
	assert.Equal(t, anomaly.ClassPointOverloadFaulty, list[0].Class)
	assert.Equal(t, 0.92, list[0].Confidence, "confidence survives an edit")
	assert.Equal(t, anomaly.OriginAI, list[0].Origin, "origin survives an edit")

	require.NoError(t, s.Delete(ctx, "insp-1", userID))
	list, err = s.List(ctx, "insp-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	assert.ErrorIs(t, s.Update(ctx, "insp-1", "missing", cbox(1, 1, 1, 1), "x"), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "insp-1", "missing"), store.ErrNotFound)

	_, err := s.List(ctx, "no-such-inspection")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Create(ctx, "no-such-inspection", anomaly.NewUser(cbox(1, 1, 1, 1), ""))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Inspection(ctx, "no-such-inspection")
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := s.List(ctx, "insp-1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestActivityLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Create(ctx, "insp-1", anomaly.NewUser(cbox(50, 50, 10, 10), anomaly.ClassFullWireOverload))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "insp-1", id, cbox(60, 60, 10, 10), anomaly.ClassFullWireOverload))
	require.NoError(t, s.Delete(ctx, "insp-1", id))

	log, err := s.Log(ctx, "insp-1")
	require.NoError(t, err)
	require.Len(t, log, 3)

	actions := []anomaly.Action{log[0].Action, log[1].Action, log[2].Action}
	assert.Equal(t, []anomaly.Action{anomaly.ActionAdded, anomaly.ActionEdited, anomaly.ActionDeleted}, actions)
	for _, e := range log {
		assert.Equal(t, id, e.AnomalyID)
		assert.NotEmpty(t, e.LogID)
		assert.Equal(t, anomaly.OriginUser, e.Origin)
		assert.True(t, e.HasBox)
		assert.True(t, e.Timestamp.Equal(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)))
	}
	assert.Equal(t, cbox(50, 50, 10, 10), log[0].Box)
	assert.Equal(t, cbox(60, 60, 10, 10), log[2].Box, "a delete snapshots the last state")
}

func TestInspections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	got, err := s.Inspection(ctx, "insp-1")
	require.NoError(t, err)
	assert.Equal(t, "TX-42", got.TransformerNo)

	got.Status = "Completed"
	require.NoError(t, s.PutInspection(ctx, got))
	require.NoError(t, s.PutInspection(ctx, anomaly.Inspection{ID: "insp-0"}))

	all, err := s.Inspections(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "insp-0", all[0].ID)
	assert.Equal(t, "Completed", all[1].Status)

	assert.Error(t, s.PutInspection(ctx, anomaly.Inspection{}))
}

func TestCommitterAgainstSQLite(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	coll := anomaly.NewCollection(nil)
	c := store.NewCommitter(context.Background(), s, "insp-1", coll)
	defer c.Close()

	a := anomaly.NewUser(cbox(10, 10, 4, 4), "")
	slot := coll.Add(a)
	c.CommitCreate(slot, a)
	edited, ok := coll.Update(slot, a.WithBox(cbox(12, 12, 4, 4)))
	require.True(t, ok)
	c.CommitUpdate(slot, edited)
	c.Wait()

	list, err := s.List(context.Background(), "insp-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cbox(12, 12, 4, 4), list[0].Box)

	got, ok := coll.Get(slot)
	require.True(t, ok)
	assert.Equal(t, list[0].ID, got.ID)
}
