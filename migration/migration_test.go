package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxcache/rxcache/persistence"
	"github.com/rxcache/rxcache/record"
)

func newTestDisk(t *testing.T) persistence.Persistence {
	t.Helper()
	p, err := persistence.New(t.TempDir(), nil)
	require.NoError(t, err)
	return p
}

type failingAction struct{ err error }

func (f failingAction) Apply(ctx context.Context, disk persistence.Persistence) error {
	return f.err
}

func TestRunSkipsStepsAtOrBelowCurrentVersion(t *testing.T) {
	disk := newTestDisk(t)
	require.NoError(t, disk.SetSchemaVersion(2))
	require.NoError(t, disk.Save("a", record.Record{TypeTag: "old.Type"}))

	r := New(disk, nil, Step{Version: 1, Action: DeleteByTypeTag{Tags: []string{"old.Type"}}})
	require.NoError(t, r.Run(context.Background()))

	_, ok := disk.RetrieveRecord("a")
	assert.True(t, ok, "step below current version must not run")
}

func TestRunAppliesStepsInAscendingOrderAndAdvancesMarker(t *testing.T) {
	disk := newTestDisk(t)
	require.NoError(t, disk.Save("a", record.Record{TypeTag: "old.Type"}))
	require.NoError(t, disk.Save("b", record.Record{TypeTag: "other.Type"}))

	r := New(disk, nil,
		Step{Version: 2, Action: DeleteByTypeTag{Tags: []string{"other.Type"}}},
		Step{Version: 1, Action: DeleteByTypeTag{Tags: []string{"old.Type"}}},
	)
	require.NoError(t, r.Run(context.Background()))

	_, ok := disk.RetrieveRecord("a")
	assert.False(t, ok)
	_, ok = disk.RetrieveRecord("b")
	assert.False(t, ok)

	v, err := disk.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestRunAbortsAndPropagatesFirstActionError(t *testing.T) {
	disk := newTestDisk(t)
	boom := errors.New("boom")

	r := New(disk, nil,
		Step{Version: 1, Action: failingAction{err: boom}},
		Step{Version: 2, Action: DeleteByTypeTag{Tags: []string{"whatever"}}},
	)
	err := r.Run(context.Background())
	require.Error(t, err)

	v, verr := disk.SchemaVersion()
	require.NoError(t, verr)
	assert.Equal(t, 0, v, "marker must not advance past a failed step")
}

func TestDeleteByTypeTagLeavesNonMatchingRecords(t *testing.T) {
	disk := newTestDisk(t)
	require.NoError(t, disk.Save("a", record.Record{TypeTag: "main.A"}))
	require.NoError(t, disk.Save("b", record.Record{TypeTag: "main.B"}))

	action := DeleteByTypeTag{Tags: []string{"main.A"}}
	require.NoError(t, action.Apply(context.Background(), disk))

	_, ok := disk.RetrieveRecord("a")
	assert.False(t, ok)
	_, ok = disk.RetrieveRecord("b")
	assert.True(t, ok)
}

func TestRenameTypeTagRewritesMatchingRecordsInPlace(t *testing.T) {
	disk := newTestDisk(t)
	require.NoError(t, disk.Save("a", record.Record{TypeTag: "old.Name", Payload: []byte("x")}))

	action := RenameTypeTag{From: "old.Name", To: "new.Name"}
	require.NoError(t, action.Apply(context.Background(), disk))

	rec, ok := disk.RetrieveRecord("a")
	require.True(t, ok)
	assert.Equal(t, "new.Name", rec.TypeTag)
	assert.Equal(t, []byte("x"), rec.Payload)
}

func TestDeleteByTypeTagWithNoTagsIsNoOp(t *testing.T) {
	disk := newTestDisk(t)
	require.NoError(t, disk.Save("a", record.Record{TypeTag: "main.A"}))

	action := DeleteByTypeTag{}
	require.NoError(t, action.Apply(context.Background(), disk))

	_, ok := disk.RetrieveRecord("a")
	assert.True(t, ok)
}
