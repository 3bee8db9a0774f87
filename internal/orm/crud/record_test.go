package crud

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/recordkit/internal/changefeed"
	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

const (
	selectUser7 = "SELECT DISTINCT id AS id, name AS name FROM user\nWHERE id = 7"
	updateUser7 = "UPDATE user SET name = 'Bob'\nWHERE id = 7"
	deleteUser7 = "DELETE FROM user\nWHERE id = 7"
)

// scriptedStore answers statements from a script and fails on anything else
type scriptedStore struct {
	script   map[string][]datasource.Row
	errs     map[string]error
	queries  []string
	connects int
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		script: make(map[string][]datasource.Row),
		errs:   make(map[string]error),
	}
}

func (s *scriptedStore) on(statement string, rows ...datasource.Row) *scriptedStore {
	s.script[statement] = rows
	return s
}

func (s *scriptedStore) Connect(ctx context.Context) error {
	s.connects++
	return nil
}

func (s *scriptedStore) Query(ctx context.Context, statement string) (*datasource.Cursor, error) {
	s.queries = append(s.queries, statement)
	if err, ok := s.errs[statement]; ok {
		return nil, err
	}
	rows, ok := s.script[statement]
	if !ok {
		return nil, fmt.Errorf("unexpected statement: %q", statement)
	}
	return datasource.NewCursor(rows...), nil
}

func (s *scriptedStore) Shutdown(ctx context.Context) error { return nil }

func affected(n int64) datasource.Row {
	return datasource.Row{datasource.AffectedRows: n}
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	events []changefeed.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event changefeed.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func userSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("user", []schema.FieldSpec{
		{Name: "id", Role: schema.RolePrimaryKey},
		{Name: "name"},
	}, nil)
	require.NoError(t, err)
	return s
}

func userBridge(t *testing.T, store datasource.Store, opts ...Option) *Bridge {
	t.Helper()
	return NewBridge("user", userSchema(t), store, opts...)
}

func TestRecordLoadUpdateAndSave(t *testing.T) {
	store := newScriptedStore().
		on(selectUser7, datasource.Row{"id": int64(7), "name": "Ann"}).
		on(updateUser7, affected(1))
	pub := &recordingPublisher{}
	rec := userBridge(t, store, WithPublisher(pub)).NewRecord(Scalar{Value: 7})
	ctx := context.Background()

	assert.Equal(t, StateFresh, rec.State())

	name, err := rec.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)
	assert.True(t, rec.IsLoaded())
	assert.Equal(t, StateLoaded, rec.State())

	require.NoError(t, rec.Set("name", "Bob"))
	assert.True(t, rec.IsChanged("name"))
	assert.Equal(t, StateDirty, rec.State())

	require.NoError(t, rec.Save(ctx))
	assert.False(t, rec.IsChanged("name"))
	assert.False(t, rec.HasChanges())
	assert.Equal(t, StateSaved, rec.State())

	name, err = rec.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	assert.Equal(t, []string{selectUser7, updateUser7}, store.queries)

	require.Len(t, pub.events, 1)
	assert.Equal(t, changefeed.OperationSave, pub.events[0].Operation)
	assert.Equal(t, int64(7), pub.events[0].Key)
	assert.Equal(t, map[string]interface{}{"name": "Bob"}, pub.events[0].Changes)
}

func TestRecordGetPrefersPendingChange(t *testing.T) {
	store := newScriptedStore()
	rec := userBridge(t, store).NewRecord(Scalar{Value: 7})

	require.NoError(t, rec.Set("name", "Bob"))
	name, err := rec.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)
	assert.Empty(t, store.queries)
	assert.False(t, rec.IsLoaded())
}

func TestRecordSetCollapses(t *testing.T) {
	rec := userBridge(t, newScriptedStore()).NewRecord(Keyed{"id": 7, "name": "Ann"})

	require.NoError(t, rec.Set("name", "Bob"))
	require.NoError(t, rec.Set("name", "Ann"))
	assert.False(t, rec.IsChanged("name"))
	assert.False(t, rec.HasChanges())
	assert.Empty(t, rec.Changes())

	// loosely equal values collapse too
	require.NoError(t, rec.Set("id", "7"))
	assert.False(t, rec.IsChanged(""))

	// a field with no committed value always records a change
	require.NoError(t, rec.Set("email", nil))
	assert.True(t, rec.IsChanged("email"))
}

func TestRecordSetCopiesValue(t *testing.T) {
	rec := userBridge(t, newScriptedStore()).NewRecord(Keyed{"id": 7})

	tags := []string{"a", "b"}
	require.NoError(t, rec.Set("tags", tags))
	tags[0] = "z"

	assert.Equal(t, []string{"a", "b"}, rec.Changes()["tags"])
}

func TestRecordScalarCoreBecomesKeyed(t *testing.T) {
	rec := userBridge(t, newScriptedStore()).NewRecord(Scalar{Value: 7})

	require.NoError(t, rec.Set("id", 7))
	assert.False(t, rec.HasChanges())

	require.NoError(t, rec.Set("name", "Ann"))
	rec.Commit()
	assert.Equal(t, Keyed{"id": 7, "name": "Ann"}, rec.core)
}

func TestRecordRollbackIsIdempotent(t *testing.T) {
	rec := userBridge(t, newScriptedStore()).NewRecord(Keyed{"id": 7, "name": "Ann"})

	require.NoError(t, rec.BulkSet(map[string]interface{}{"name": "Bob", "email": "b@example.com"}))
	assert.True(t, rec.HasChanges())

	rec.Rollback()
	assert.False(t, rec.HasChanges())
	rec.Rollback()
	assert.False(t, rec.HasChanges())
	assert.Equal(t, Keyed{"id": 7, "name": "Ann"}, rec.core)
}

func TestRecordLoadNotFound(t *testing.T) {
	store := newScriptedStore().on(selectUser7)
	rec := userBridge(t, store).NewRecord(Scalar{Value: 7})

	_, err := rec.Get(context.Background(), "name")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, fault.SeverityError, fault.SeverityOf(err))
	assert.False(t, rec.IsLoaded())
}

func TestRecordLoadWithoutIdentity(t *testing.T) {
	store := newScriptedStore()
	rec := userBridge(t, store).NewRecord(Keyed{"name": "Ann"})

	err := rec.Load(context.Background())
	assert.True(t, IsNotFound(err))
	assert.Empty(t, store.queries)
}

func TestRecordLoadNotFoundCreateOnSave(t *testing.T) {
	store := newScriptedStore().on(selectUser7)
	rec := userBridge(t, store, WithCreateOnSave(true)).NewRecord(Scalar{Value: 7})

	name, err := rec.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Nil(t, name)
	assert.True(t, rec.IsLoaded())
	assert.True(t, rec.IsNew())
}

func TestRecordLoadNotFoundPanicPolicy(t *testing.T) {
	store := newScriptedStore().on(selectUser7)
	reporter := fault.NewReporter(nil, fault.Panic)
	rec := userBridge(t, store, WithReporter(reporter)).NewRecord(Scalar{Value: 7})

	assert.Panics(t, func() {
		_ = rec.Load(context.Background())
	})
}

func TestRecordLoadAbsorbedByHandler(t *testing.T) {
	store := newScriptedStore().on(selectUser7)
	reporter := fault.NewReporter(nil, func(*fault.Error) error { return nil })
	rec := userBridge(t, store, WithReporter(reporter)).NewRecord(Scalar{Value: 7})

	require.NoError(t, rec.Load(context.Background()))
	assert.True(t, rec.IsLoaded())
}

func TestRecordCreateOnSave(t *testing.T) {
	store := newScriptedStore().on("REPLACE INTO user (id, name) VALUES (NULL, 'Ann')",
		datasource.Row{datasource.AffectedRows: int64(1), datasource.GeneratedID: int64(12)})
	pub := &recordingPublisher{}
	rec := userBridge(t, store, WithCreateOnSave(true), WithPublisher(pub)).NewRecord(nil)
	ctx := context.Background()

	assert.True(t, rec.IsNew())
	require.NoError(t, rec.Set("name", "Ann"))
	require.NoError(t, rec.Save(ctx))

	assert.False(t, rec.IsNew())
	assert.True(t, rec.IsLoaded())
	assert.False(t, rec.HasChanges())

	id, err := rec.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, 1, store.connects)

	require.Len(t, pub.events, 1)
	assert.Equal(t, changefeed.OperationCreate, pub.events[0].Operation)
	assert.Equal(t, int64(12), pub.events[0].Key)
}

func TestRecordCreateOnSaveWithNewKey(t *testing.T) {
	store := newScriptedStore().on("REPLACE INTO user (id, name) VALUES (NULL, 'Ann')",
		datasource.Row{datasource.AffectedRows: int64(1), datasource.GeneratedID: int64(3)})
	rec := userBridge(t, store, WithCreateOnSave(true)).NewRecord(Keyed{"id": "new"})

	require.NoError(t, rec.Set("name", "Ann"))
	require.NoError(t, rec.Save(context.Background()))
	assert.Equal(t, int64(3), rec.core.(Keyed)["id"])
}

func TestRecordPrimaryKeyMismatch(t *testing.T) {
	store := newScriptedStore().on("REPLACE INTO user (id, name) VALUES (5, 'Ann')",
		datasource.Row{datasource.AffectedRows: int64(1), datasource.GeneratedID: int64(9)})
	rec := userBridge(t, store, WithCreateOnSave(true)).NewRecord(Keyed{"id": 5})

	require.NoError(t, rec.Set("name", "Ann"))
	err := rec.Save(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPrimaryKeyMismatch))
	assert.True(t, fault.IsFatal(err))
}

func TestRecordSaveNoRowsAffected(t *testing.T) {
	store := newScriptedStore().
		on(selectUser7, datasource.Row{"id": int64(7), "name": "Ann"}).
		on(updateUser7, affected(0))
	rec := userBridge(t, store).NewRecord(Scalar{Value: 7})
	ctx := context.Background()

	require.NoError(t, rec.Load(ctx))
	require.NoError(t, rec.Set("name", "Bob"))

	err := rec.Save(ctx)
	assert.True(t, IsNoRowsAffected(err))
	assert.True(t, rec.HasChanges())
}

func TestRecordSaveWithoutChanges(t *testing.T) {
	store := newScriptedStore()
	rec := userBridge(t, store).NewRecord(Scalar{Value: 7})

	require.NoError(t, rec.Save(context.Background()))
	assert.Empty(t, store.queries)
	assert.Equal(t, 0, store.connects)
}

func TestRecordSaveWarnsOnMultipleRows(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reporter := fault.NewReporter(zap.New(core), nil)
	store := newScriptedStore().on(updateUser7, affected(2))
	pub := &recordingPublisher{err: errors.New("broker down")}
	rec := userBridge(t, store, WithReporter(reporter), WithPublisher(pub)).NewRecord(Keyed{"id": 7})

	require.NoError(t, rec.Set("name", "Bob"))
	require.NoError(t, rec.Save(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("2 records written").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to publish change event").Len())
}

func TestRecordSaveStoreFailure(t *testing.T) {
	store := newScriptedStore()
	store.errs[updateUser7] = fault.Fatal("query", errors.New("connection reset"))
	rec := userBridge(t, store).NewRecord(Keyed{"id": 7})

	require.NoError(t, rec.Set("name", "Bob"))
	err := rec.Save(context.Background())
	assert.True(t, fault.IsFatal(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRecordRemove(t *testing.T) {
	store := newScriptedStore().on(deleteUser7, affected(1))
	pub := &recordingPublisher{}
	rec := userBridge(t, store, WithCreateOnSave(true), WithPublisher(pub)).NewRecord(Keyed{"id": 7, "name": "Ann"})
	rec.isNew = false
	ctx := context.Background()

	require.NoError(t, rec.Remove(ctx))
	assert.Equal(t, StateRemoved, rec.State())
	assert.True(t, rec.IsNew())

	require.Len(t, pub.events, 1)
	assert.Equal(t, changefeed.OperationRemove, pub.events[0].Operation)

	_, err := rec.Get(ctx, "name")
	assert.True(t, IsRemoved(err))
	assert.True(t, IsRemoved(rec.Set("name", "Bob")))
	assert.True(t, IsRemoved(rec.Save(ctx)))
	assert.True(t, IsRemoved(rec.Remove(ctx)))
	assert.True(t, IsRemoved(rec.Load(ctx)))
}

func TestRecordRemoveNoRowsAffected(t *testing.T) {
	store := newScriptedStore().on(deleteUser7, affected(0))
	rec := userBridge(t, store, WithCreateOnSave(true)).NewRecord(Scalar{Value: 7})
	rec.isNew = false

	err := rec.Remove(context.Background())
	require.Error(t, err)
	assert.True(t, IsNoRowsAffected(err))
	assert.False(t, rec.IsNew())
	assert.NotEqual(t, StateRemoved, rec.State())
}

func TestRecordImport(t *testing.T) {
	form := datasource.NewRequestStore(url.Values{"id": {"7"}, "name": {"Bob"}})
	store := newScriptedStore()
	rec := userBridge(t, store).NewRecord(Scalar{Value: 7})

	require.NoError(t, rec.Import(context.Background(), form))
	assert.False(t, rec.IsLoaded())
	assert.Equal(t, map[string]interface{}{"name": "Bob"}, rec.Changes())
	assert.Empty(t, store.queries)
}

func TestRecordImportMissing(t *testing.T) {
	form := datasource.NewRequestStore(url.Values{"id": {"8"}, "name": {"Bob"}})
	rec := userBridge(t, newScriptedStore()).NewRecord(Scalar{Value: 7})

	err := rec.Import(context.Background(), form)
	assert.True(t, IsNotFound(err))
	assert.False(t, rec.HasChanges())
}

func TestRecordSnapshotAndValue(t *testing.T) {
	store := newScriptedStore().on(selectUser7, datasource.Row{"id": int64(7), "name": "Ann"})
	rec := userBridge(t, store).NewRecord(Scalar{Value: 7})
	ctx := context.Background()

	require.NoError(t, rec.Set("name", "Bob"))

	core, err := rec.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, Keyed{"id": int64(7), "name": "Ann"}, core)

	snap, err := rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": int64(7), "name": "Bob"}, snap)
}

func TestRecordUpdateCarriesForeignKeys(t *testing.T) {
	s, err := schema.New("user", []schema.FieldSpec{
		{Name: "id", Role: schema.RolePrimaryKey},
		{Name: "name"},
		{Name: "id", Alias: "profile_id", Table: "profile"},
		{Name: "profile_id", Role: schema.RoleForeignKey},
		{Name: "bio", Table: "profile"},
	}, nil)
	require.NoError(t, err)

	updateUser := "UPDATE user SET profile_id = 5\nWHERE id = 3"
	updateProfile := "UPDATE profile SET bio = 'hi'\nWHERE id = 5"
	store := newScriptedStore().
		on(updateUser, affected(1)).
		on(updateProfile, affected(1))
	rec := NewBridge("user", s, store).NewRecord(Keyed{"id": 3, "name": "Ann", "profile_id": 5})

	require.NoError(t, rec.Set("bio", "hi"))
	require.NoError(t, rec.Save(context.Background()))
	assert.Equal(t, []string{updateUser, updateProfile}, store.queries)
}

func TestRecordSaveWarnsPerStatement(t *testing.T) {
	s, err := schema.New("user", []schema.FieldSpec{
		{Name: "id", Role: schema.RolePrimaryKey},
		{Name: "name"},
		{Name: "id", Alias: "profile_id", Table: "profile"},
		{Name: "profile_id", Role: schema.RoleForeignKey},
		{Name: "bio", Table: "profile"},
	}, nil)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	reporter := fault.NewReporter(zap.New(core), nil)
	store := newScriptedStore().
		on("UPDATE user SET profile_id = 5\nWHERE id = 3", affected(5)).
		on("UPDATE profile SET bio = 'hi'\nWHERE id = 5", affected(1))
	rec := NewBridge("user", s, store, WithReporter(reporter)).NewRecord(Keyed{"id": 3, "name": "Ann", "profile_id": 5})

	require.NoError(t, rec.Set("bio", "hi"))
	require.NoError(t, rec.Save(context.Background()))

	warned := logs.FilterMessage("5 records written")
	require.Equal(t, 1, warned.Len())
	assert.Equal(t, "UPDATE user SET profile_id = 5\nWHERE id = 3", warned.All()[0].ContextMap()["statement"])
}

func TestRecordCreateAbsorbedFailureStaysNew(t *testing.T) {
	store := newScriptedStore().on("REPLACE INTO user (id, name) VALUES (NULL, 'Ann')", affected(0))
	reporter := fault.NewReporter(nil, func(*fault.Error) error { return nil })
	rec := userBridge(t, store, WithCreateOnSave(true), WithReporter(reporter)).NewRecord(nil)

	require.NoError(t, rec.Set("name", "Ann"))
	require.NoError(t, rec.Save(context.Background()))

	// The changeset was committed before the write; nothing was persisted
	assert.False(t, rec.HasChanges())
	assert.True(t, rec.IsNew())
	assert.Equal(t, "Ann", rec.core.(Keyed)["name"])
}

func TestStateAndOperationStrings(t *testing.T) {
	assert.Equal(t, "fresh", StateFresh.String())
	assert.Equal(t, "dirty", StateDirty.String())
	assert.Equal(t, "removed", StateRemoved.String())
	assert.Equal(t, "unknown", State(42).String())

	assert.Equal(t, "load", OperationLoad.String())
	assert.Equal(t, "create", OperationCreate.String())
	assert.Equal(t, changefeed.OperationSave, OperationUpdate.feed())
	assert.Equal(t, changefeed.OperationRemove, OperationRemove.feed())
}
