package systems

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stampRecordSize = 16

// stamps encodes each entity as (id, stamp) so tests can see which state a
// record was written from.
type stamps map[scene.Entity]uint32

func (s stamps) encode(e scene.Entity, dst []byte) {
	clear(dst)
	binary.LittleEndian.PutUint32(dst[0:], e.ID)
	binary.LittleEndian.PutUint32(dst[4:], s[e])
}

func decodeStamp(rec []byte) (id, stamp uint32) {
	return binary.LittleEndian.Uint32(rec[0:]), binary.LittleEndian.Uint32(rec[4:])
}

func newTestGroup(t *testing.T, coalesce bool) (*InstanceGroup, *renderer.HostBuffer, stamps) {
	t.Helper()
	st := stamps{}
	buf := renderer.NewHostBufferFactory().CreateBuffer("test")
	g := newInstanceGroup(instanceGroupConfig{
		meshAsset:  &assets.MeshAsset{Name: "cube", SubmeshCount: 1},
		materials:  []*assets.Material{{Name: "mat"}},
		buffer:     buf,
		recordSize: stampRecordSize,
		encode:     st.encode,
		coalesce:   coalesce,
		capacity:   4,
	})
	hb, ok := buf.(*renderer.HostBuffer)
	require.True(t, ok)
	return g, hb, st
}

func entities(n int) []scene.Entity {
	es := make([]scene.Entity, n)
	for i := range es {
		es[i] = scene.Entity{ID: uint32(i + 1), Version: 1}
	}
	return es
}

func bufferRecords(b renderer.Buffer, size int) [][]byte {
	var recs [][]byte
	data := b.Bytes()
	for off := 0; off+size <= len(data); off += size {
		recs = append(recs, append([]byte(nil), data[off:off+size]...))
	}
	return recs
}

func TestAddInstance(t *testing.T) {
	g, buf, _ := newTestGroup(t, true)
	es := entities(3)
	for i, e := range es {
		require.True(t, g.AddInstance(e))
		assert.Equal(t, (i+1)*stampRecordSize, buf.Size())
		assert.True(t, g.IsDirty(e))
	}
	assert.False(t, g.AddInstance(es[0]), "members are unique")
	assert.Equal(t, 3, g.InstanceCount())
	assert.Equal(t, es, g.Members())

	slot, ok := g.Slot(es[2])
	require.True(t, ok)
	assert.Equal(t, 2, slot)
}

func TestProcessUpdatesWritesLatestState(t *testing.T) {
	g, buf, st := newTestGroup(t, true)
	e := entities(1)[0]
	g.AddInstance(e)
	st[e] = 1
	g.FlagDirty(e)
	st[e] = 2

	assert.Equal(t, 1, g.ProcessUpdates())
	assert.Equal(t, 0, g.DirtyCount())
	id, stamp := decodeStamp(buf.Bytes())
	assert.Equal(t, e.ID, id)
	assert.Equal(t, uint32(2), stamp)

	assert.Equal(t, 0, g.ProcessUpdates(), "empty dirty set is a no-op")
}

func TestProcessUpdatesCoalescesRuns(t *testing.T) {
	for _, tc := range []struct {
		name     string
		coalesce bool
		writes   int
	}{
		{"coalesced", true, 2},
		{"per record", false, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g, buf, _ := newTestGroup(t, tc.coalesce)
			es := entities(4)
			for _, e := range es {
				g.AddInstance(e)
			}
			g.ProcessUpdates()
			buf.ResetStats()

			g.FlagDirty(es[0])
			g.FlagDirty(es[1])
			g.FlagDirty(es[3])
			assert.Equal(t, 3, g.ProcessUpdates())
			assert.Equal(t, tc.writes, buf.Stats().SubWrites)
			assert.Equal(t, 3*stampRecordSize, buf.Stats().BytesWritten)
		})
	}
}

func TestRemoveInstanceSwapsLast(t *testing.T) {
	g, buf, st := newTestGroup(t, true)
	es := entities(4)
	for i, e := range es {
		st[e] = uint32(10 + i)
		g.AddInstance(e)
	}
	g.ProcessUpdates()
	before := bufferRecords(buf, stampRecordSize)
	last := before[3]

	require.True(t, g.RemoveInstance(es[1]))
	assert.Equal(t, 3, g.InstanceCount())
	assert.Equal(t, 3*stampRecordSize, buf.Size())
	assert.False(t, g.Contains(es[1]))

	slot, ok := g.Slot(es[3])
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Equal(t, last, buf.Bytes()[stampRecordSize:2*stampRecordSize])
	assert.Equal(t, last, g.Record(1))

	after := bufferRecords(buf, stampRecordSize)
	assert.ElementsMatch(t, [][]byte{before[0], before[2], before[3]}, after)
	assert.Equal(t, 0, g.DirtyCount())
}

func TestRemoveInstanceMovesDirtyBit(t *testing.T) {
	g, _, _ := newTestGroup(t, true)
	es := entities(3)
	for _, e := range es {
		g.AddInstance(e)
	}
	g.ProcessUpdates()

	g.FlagDirty(es[2])
	g.RemoveInstance(es[0])
	assert.True(t, g.IsDirty(es[2]))
	assert.False(t, g.IsDirty(es[1]))
	assert.Equal(t, 1, g.DirtyCount())

	// Removing the dirty last member leaves no stale bit behind.
	g.RemoveInstance(es[2])
	assert.Equal(t, 0, g.DirtyCount())
	assert.Equal(t, 1, g.InstanceCount())
}

func TestRemoveInstanceDefensive(t *testing.T) {
	g, _, _ := newTestGroup(t, true)
	es := entities(2)
	g.AddInstance(es[0])

	assert.False(t, g.RemoveInstance(es[1]))
	g.FlagDirty(es[1])
	assert.Equal(t, 1, g.DirtyCount())

	require.True(t, g.RemoveInstance(es[0]))
	assert.Equal(t, 0, g.InstanceCount())
	assert.Equal(t, 0, g.DirtyCount())
	assert.Equal(t, 0, g.ProcessUpdates())
}

// flakyBuffer rejects writes starting at failAt while failAt >= 0.
type flakyBuffer struct {
	*renderer.HostBuffer
	failAt int
}

func (b *flakyBuffer) SubData(offset int, data []byte) error {
	if offset == b.failAt {
		return errors.New("device lost")
	}
	return b.HostBuffer.SubData(offset, data)
}

func TestFailedWritesStayDirty(t *testing.T) {
	for _, coalesce := range []bool{true, false} {
		st := stamps{}
		host := renderer.NewHostBufferFactory().CreateBuffer("test").(*renderer.HostBuffer)
		buf := &flakyBuffer{HostBuffer: host, failAt: -1}
		g := newInstanceGroup(instanceGroupConfig{
			meshAsset:  &assets.MeshAsset{Name: "cube", SubmeshCount: 1},
			materials:  []*assets.Material{{Name: "mat"}},
			buffer:     buf,
			recordSize: stampRecordSize,
			encode:     st.encode,
			coalesce:   coalesce,
		})
		es := entities(3)
		for _, e := range es {
			g.AddInstance(e)
		}
		g.ProcessUpdates()

		// Only the middle record changes, and its write fails.
		st[es[1]] = 7
		g.FlagDirty(es[1])
		buf.failAt = stampRecordSize
		assert.Equal(t, 0, g.ProcessUpdates(), "coalesce=%v", coalesce)
		assert.True(t, g.IsDirty(es[1]), "coalesce=%v", coalesce)
		assert.Equal(t, 1, g.DirtyCount(), "coalesce=%v", coalesce)

		buf.failAt = -1
		assert.Equal(t, 1, g.ProcessUpdates(), "coalesce=%v", coalesce)
		assert.Equal(t, 0, g.DirtyCount(), "coalesce=%v", coalesce)
		_, stamp := decodeStamp(bufferRecords(buf, stampRecordSize)[1])
		assert.Equal(t, uint32(7), stamp, "coalesce=%v", coalesce)
	}
}
