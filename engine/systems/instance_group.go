package systems

import (
	"slices"

	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/containers"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
)

/**
 * @brief A batch of entities sharing one mesh asset and one ordered material
 * list, drawn with a single instanced call. Slot i of the transform buffer
 * holds the record of members[i].
 */
type InstanceGroup struct {
	handle    containers.Handle
	meshAsset *assets.MeshAsset
	materials []*assets.Material

	members []scene.Entity
	// entity -> slot in members
	index map[scene.Entity]int
	dirty containers.BitSet[uint64]

	recordSize int
	encode     RecordEncoder
	// CPU copy of the buffer contents, len(members)*recordSize bytes.
	staging  []byte
	buffer   renderer.Buffer
	coalesce bool
	// Billboard groups are keyed on their single material.
	billboard bool
}

type instanceGroupConfig struct {
	meshAsset  *assets.MeshAsset
	materials  []*assets.Material
	buffer     renderer.Buffer
	recordSize int
	encode     RecordEncoder
	coalesce   bool
	capacity   int
	billboard  bool
}

func newInstanceGroup(config instanceGroupConfig) *InstanceGroup {
	return &InstanceGroup{
		meshAsset:  config.meshAsset,
		materials:  slices.Clone(config.materials),
		members:    make([]scene.Entity, 0, config.capacity),
		index:      make(map[scene.Entity]int, config.capacity),
		recordSize: config.recordSize,
		encode:     config.encode,
		staging:    make([]byte, 0, config.capacity*config.recordSize),
		buffer:     config.buffer,
		coalesce:   config.coalesce,
		billboard:  config.billboard,
	}
}

func (g *InstanceGroup) Handle() containers.Handle { return g.handle }

func (g *InstanceGroup) MeshAsset() *assets.MeshAsset { return g.meshAsset }

// Materials returns the key's material list. It must not be modified.
func (g *InstanceGroup) Materials() []*assets.Material { return g.materials }

func (g *InstanceGroup) IsBillboard() bool { return g.billboard }

func (g *InstanceGroup) TransformBuffer() renderer.Buffer { return g.buffer }

func (g *InstanceGroup) InstanceCount() int { return len(g.members) }

// Members returns a copy of the members in slot order.
func (g *InstanceGroup) Members() []scene.Entity { return slices.Clone(g.members) }

func (g *InstanceGroup) Contains(e scene.Entity) bool {
	_, ok := g.index[e]
	return ok
}

// Slot returns the buffer slot of e.
func (g *InstanceGroup) Slot(e scene.Entity) (int, bool) {
	slot, ok := g.index[e]
	return slot, ok
}

func (g *InstanceGroup) IsDirty(e scene.Entity) bool {
	slot, ok := g.index[e]
	return ok && g.dirty.IsSet(slot)
}

func (g *InstanceGroup) DirtyCount() int { return g.dirty.Count() }

// Record returns the staged record of a slot as of the last flush.
func (g *InstanceGroup) Record(slot int) []byte {
	if slot < 0 || slot >= len(g.members) {
		return nil
	}
	return g.staging[slot*g.recordSize : (slot+1)*g.recordSize]
}

func (g *InstanceGroup) hasKey(mesh *assets.MeshAsset, materials []*assets.Material) bool {
	return g.meshAsset == mesh && slices.Equal(g.materials, materials)
}

/**
 * @brief Appends e to the group and grows the buffer by one record. The new
 * slot is dirty, so its transform is written on the next flush.
 * @returns False if e already is a member.
 */
func (g *InstanceGroup) AddInstance(e scene.Entity) bool {
	if _, ok := g.index[e]; ok {
		return false
	}
	slot := len(g.members)
	g.members = append(g.members, e)
	g.index[e] = slot
	g.staging = append(g.staging, make([]byte, g.recordSize)...)
	g.buffer.Resize(len(g.members) * g.recordSize)
	g.dirty.Resize(len(g.members))
	g.dirty.Set(slot)
	return true
}

/**
 * @brief Removes e by moving the last member into its slot. The moved
 * member's record and dirty bit travel with it. The group may be left empty;
 * destroying it is up to the owner.
 * @returns False if e is not a member.
 */
func (g *InstanceGroup) RemoveInstance(e scene.Entity) bool {
	slot, ok := g.index[e]
	if !ok {
		return false
	}
	rs := g.recordSize
	last := len(g.members) - 1
	if slot != last {
		moved := g.members[last]
		g.members[slot] = moved
		g.index[moved] = slot
		copy(g.staging[slot*rs:(slot+1)*rs], g.staging[last*rs:(last+1)*rs])
		if g.dirty.IsSet(last) {
			g.dirty.Set(slot)
		} else {
			g.dirty.Unset(slot)
			// The record is current, only its position changed.
			if err := g.buffer.SubData(slot*rs, g.staging[slot*rs:(slot+1)*rs]); err != nil {
				core.LogError(err.Error())
				g.dirty.Set(slot)
			}
		}
	}

	delete(g.index, e)
	g.members = g.members[:last]
	g.staging = g.staging[:last*rs]
	g.dirty.Resize(last)
	g.buffer.Resize(last * rs)
	return true
}

// FlagDirty schedules the record of e for rewrite. Non-members are ignored.
func (g *InstanceGroup) FlagDirty(e scene.Entity) {
	if slot, ok := g.index[e]; ok {
		g.dirty.Set(slot)
	}
}

/**
 * @brief Re-encodes every dirty record and writes it to the buffer, one
 * write per contiguous run when coalescing, else one per record. A group
 * whose buffer does not match its membership is skipped and stays dirty, as
 * does any record whose write failed.
 * @returns The number of records written.
 */
func (g *InstanceGroup) ProcessUpdates() int {
	if g.dirty.Count() == 0 {
		return 0
	}
	rs := g.recordSize
	if !core.Assert(g.buffer.Size() == len(g.members)*rs && len(g.staging) == len(g.members)*rs,
		"instance group of '%s' holds %d members but its buffer is %d bytes", g.meshName(), len(g.members), g.buffer.Size()) {
		return 0
	}

	for slot := range g.dirty.All() {
		g.encode(g.members[slot], g.staging[slot*rs:(slot+1)*rs])
	}

	// Slots whose write failed stay dirty for the next flush.
	var failed []int
	written := 0
	if g.coalesce {
		for start, n := range g.dirty.Runs() {
			if err := g.buffer.SubData(start*rs, g.staging[start*rs:(start+n)*rs]); err != nil {
				core.LogError(err.Error())
				for slot := start; slot < start+n; slot++ {
					failed = append(failed, slot)
				}
				continue
			}
			written += n
		}
	} else {
		for slot := range g.dirty.All() {
			if err := g.buffer.SubData(slot*rs, g.staging[slot*rs:(slot+1)*rs]); err != nil {
				core.LogError(err.Error())
				failed = append(failed, slot)
				continue
			}
			written++
		}
	}
	g.dirty.Clear()
	for _, slot := range failed {
		g.dirty.Set(slot)
	}
	return written
}

func (g *InstanceGroup) meshName() string {
	if g.meshAsset == nil {
		return ""
	}
	return g.meshAsset.Name
}

func (g *InstanceGroup) release() {
	g.buffer.Release()
	g.members = nil
	g.index = nil
	g.staging = nil
	g.dirty.Resize(0)
}
