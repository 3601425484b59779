package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *AssetManager {
	t.Helper()
	am, err := NewAssetManager(&AssetManagerConfig{PendingCapacity: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Close() })
	return am
}

func TestBaseAssets(t *testing.T) {
	am := newTestManager(t)
	require.NotNil(t, am.GetDefaultMeshAsset())
	require.NotNil(t, am.GetBaseQuad())
	require.NotNil(t, am.GetDefaultMaterial())
	assert.NotSame(t, am.GetDefaultMeshAsset(), am.GetBaseQuad())
	assert.Equal(t, 1, am.GetDefaultMeshAsset().SubmeshCount)

	assert.ErrorIs(t, am.DeleteMeshAsset(am.GetDefaultMeshAsset()), core.ErrBaseAsset)
	assert.ErrorIs(t, am.DeleteMeshAsset(am.GetBaseQuad()), core.ErrBaseAsset)
	assert.ErrorIs(t, am.DeleteMaterial(am.GetDefaultMaterial()), core.ErrBaseAsset)
}

func TestCreateAndLookup(t *testing.T) {
	am := newTestManager(t)
	m := am.CreateMeshAsset("rock", "", 0)
	assert.Equal(t, 1, m.SubmeshCount, "submesh count is corrected to at least one")

	got, ok := am.MeshAssetByUUID(m.UUID)
	require.True(t, ok)
	assert.Same(t, m, got)

	mat := am.CreateMaterial("stone", "")
	gotMat, ok := am.MaterialByUUID(mat.UUID)
	require.True(t, ok)
	assert.Same(t, mat, gotMat)
}

func TestDeleteFiresEventBeforeForgetting(t *testing.T) {
	am := newTestManager(t)
	mesh := am.CreateMeshAsset("tree", "", 3)
	mat := am.CreateMaterial("bark", "")

	var seen []Event
	am.Events().Register(func(e Event) {
		seen = append(seen, e)
		if e.Type == EventMeshDeleted {
			_, stillThere := am.MeshAssetByUUID(e.Mesh.UUID)
			assert.True(t, stillThere)
		}
	})

	require.NoError(t, am.DeleteMeshAsset(mesh))
	require.NoError(t, am.DeleteMaterial(mat))
	require.Len(t, seen, 2)
	assert.Equal(t, EventMeshDeleted, seen[0].Type)
	assert.Same(t, mesh, seen[0].Mesh)
	assert.Equal(t, EventMaterialDeleted, seen[1].Type)
	assert.Same(t, mat, seen[1].Material)

	_, ok := am.MeshAssetByUUID(mesh.UUID)
	assert.False(t, ok)
	assert.ErrorIs(t, am.DeleteMeshAsset(mesh), core.ErrUnknownAsset)
	assert.ErrorIs(t, am.DeleteMaterial(mat), core.ErrUnknownAsset)
	assert.ErrorIs(t, am.DeleteMaterial(nil), core.ErrUnknownAsset)
}

func TestFileRemovalIsMarshalledToProcessPending(t *testing.T) {
	am := newTestManager(t)
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "crate.obj")
	matPath := filepath.Join(dir, "crate.mat")
	mesh := am.CreateMeshAsset("crate", meshPath, 1)
	mat := am.CreateMaterial("crate", matPath)

	deleted := 0
	am.Events().Register(func(e Event) {
		if e.Type == EventMeshDeleted || e.Type == EventMaterialDeleted {
			deleted++
		}
	})

	// Writes and untracked files are ignored.
	am.handleFSEvent(fsnotify.Event{Name: meshPath, Op: fsnotify.Write})
	am.handleFSEvent(fsnotify.Event{Name: filepath.Join(dir, "other.obj"), Op: fsnotify.Remove})
	assert.Equal(t, 0, am.ProcessPending())

	am.handleFSEvent(fsnotify.Event{Name: meshPath, Op: fsnotify.Remove})
	am.handleFSEvent(fsnotify.Event{Name: matPath, Op: fsnotify.Rename})
	assert.Equal(t, 0, deleted, "nothing is deleted off the tick thread")

	assert.Equal(t, 2, am.ProcessPending())
	assert.Equal(t, 2, deleted)
	_, ok := am.MeshAssetByUUID(mesh.UUID)
	assert.False(t, ok)
	_, ok = am.MaterialByUUID(mat.UUID)
	assert.False(t, ok)
	assert.Equal(t, 0, am.ProcessPending())
}

func TestWatchAndClose(t *testing.T) {
	am := newTestManager(t)
	assert.Error(t, am.Watch(filepath.Join(t.TempDir(), "missing")))

	require.NoError(t, am.Watch(t.TempDir()))
	assert.Error(t, am.Watch(t.TempDir()), "a second watch is rejected")
	require.NoError(t, am.Close())
	require.NoError(t, am.Close())
}

func writeDescriptor(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAsyncAppliesOnProcessPending(t *testing.T) {
	am := newTestManager(t)
	dir := t.TempDir()
	meshPath := writeDescriptor(t, dir, "tree.toml", "kind = \"mesh\"\nname = \"tree\"\nsubmeshes = 2\n")
	matPath := writeDescriptor(t, dir, "bark.toml", "kind = \"material\"\nname = \"bark\"\n")
	badPath := writeDescriptor(t, dir, "bad.toml", "kind = \"sound\"\n")

	results := map[string]LoadResult{}
	collect := func(r LoadResult) { results[filepath.Base(r.Path)] = r }
	require.NoError(t, am.LoadAsync(meshPath, collect))
	require.NoError(t, am.LoadAsync(matPath, collect))
	require.NoError(t, am.LoadAsync(badPath, collect))
	require.NoError(t, am.LoadAsync(filepath.Join(dir, "missing.toml"), collect))

	applied := 0
	require.Eventually(t, func() bool {
		applied += am.ProcessPending()
		return applied == 4
	}, 2*time.Second, 5*time.Millisecond)
	require.Len(t, results, 4)

	mesh := results["tree.toml"].Mesh
	require.NotNil(t, mesh)
	assert.Equal(t, "tree", mesh.Name)
	assert.Equal(t, 2, mesh.SubmeshCount)
	got, ok := am.MeshAssetByUUID(mesh.UUID)
	require.True(t, ok)
	assert.Same(t, mesh, got)

	mat := results["bark.toml"].Material
	require.NotNil(t, mat)
	assert.Equal(t, "bark", mat.Name)

	assert.Error(t, results["bad.toml"].Err)
	assert.Error(t, results["missing.toml"].Err)
	assert.Nil(t, results["missing.toml"].Mesh)

	// A loaded asset is tracked by path like any other.
	am.handleFSEvent(fsnotify.Event{Name: meshPath, Op: fsnotify.Remove})
	assert.Equal(t, 1, am.ProcessPending())
	_, ok = am.MeshAssetByUUID(mesh.UUID)
	assert.False(t, ok)
}

func TestLoadAsyncAfterClose(t *testing.T) {
	am := newTestManager(t)
	require.NoError(t, am.Close())
	assert.ErrorIs(t, am.LoadAsync("tree.toml", nil), core.ErrJobSystemClosed)
}
