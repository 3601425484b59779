package systems

import (
	"fmt"
	"iter"
	"slices"

	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/containers"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
)

const defaultInitialGroupCapacity = 16

/** @brief The instancing system configuration. */
type InstancingSystemConfig struct {
	// Records reserved up front by every new group.
	InitialGroupCapacity int
	// Merge contiguous dirty records into a single buffer write.
	CoalesceWrites bool
}

/**
 * @brief Sorts every entity carrying a mesh or billboard component into the
 * instance group matching its (mesh, ordered materials) key, and keeps the
 * groups' transform buffers in sync with the scene. Each key has at most one
 * group. All methods must be called from the tick goroutine.
 */
type MeshInstancingSystem struct {
	config   *InstancingSystemConfig
	registry *scene.Registry
	assets   *assets.AssetManager
	buffers  renderer.BufferFactory

	groups *containers.SlotMap[*InstanceGroup]
	// Visiting order for Update and the renderer.
	meshOrder      []containers.Handle
	billboardOrder []containers.Handle
	meshIndex      map[*assets.MeshAsset][]containers.Handle
	billboardIndex map[*assets.Material]containers.Handle

	meshEncoder      RecordEncoder
	billboardEncoder RecordEncoder

	meshListener      core.ListenerID
	billboardListener core.ListenerID
	transformListener core.ListenerID
	assetListener     core.ListenerID
	loaded            bool
	updating          bool
}

/**
 * @brief Creates the instancing system. OnLoad must be called before it
 * reacts to scene changes.
 *
 * @param config The configuration for this system.
 * @param registry The scene whose components are instanced.
 * @param am Supplies the fallback assets and deletion events.
 * @param buffers Allocates one transform buffer per group.
 */
func NewMeshInstancingSystem(config *InstancingSystemConfig, registry *scene.Registry, am *assets.AssetManager, buffers renderer.BufferFactory) (*MeshInstancingSystem, error) {
	if config == nil || registry == nil || am == nil || buffers == nil {
		err := fmt.Errorf("func NewMeshInstancingSystem - config, registry, asset manager and buffer factory are required")
		core.LogError(err.Error())
		return nil, err
	}
	if config.InitialGroupCapacity < 0 {
		err := fmt.Errorf("func NewMeshInstancingSystem - config.InitialGroupCapacity must be >= 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.InitialGroupCapacity == 0 {
		core.LogWarn("instancing: initial group capacity not set, using %d", defaultInitialGroupCapacity)
		config.InitialGroupCapacity = defaultInitialGroupCapacity
	}
	return &MeshInstancingSystem{
		config:           config,
		registry:         registry,
		assets:           am,
		buffers:          buffers,
		groups:           containers.NewSlotMap[*InstanceGroup](64),
		meshIndex:        make(map[*assets.MeshAsset][]containers.Handle),
		billboardIndex:   make(map[*assets.Material]containers.Handle),
		meshEncoder:      meshRecordEncoder(registry),
		billboardEncoder: billboardRecordEncoder(registry),
	}, nil
}

/**
 * @brief Subscribes to the scene and asset channels and sorts the components
 * that already exist.
 */
func (s *MeshInstancingSystem) OnLoad() {
	if s.loaded {
		return
	}
	s.loaded = true

	s.meshListener = s.registry.MeshEvents().Register(func(ev scene.MeshEvent) {
		switch ev.Type {
		case core.ComponentAdded:
			s.OnComponentAdded(ev.Component)
		case core.ComponentUpdated:
			s.OnComponentUpdated(ev.Component)
		case core.ComponentDeleted:
			s.OnComponentDeleted(ev.Component)
		}
	})
	s.billboardListener = s.registry.BillboardEvents().Register(func(ev scene.BillboardEvent) {
		switch ev.Type {
		case core.ComponentAdded:
			s.OnBillboardAdded(ev.Component)
		case core.ComponentUpdated:
			s.OnBillboardUpdated(ev.Component)
		case core.ComponentDeleted:
			s.OnBillboardDeleted(ev.Component)
		}
	})
	s.transformListener = s.registry.TransformEvents().Register(func(ev scene.TransformEvent) {
		if ev.Type == core.ComponentUpdated {
			s.OnTransformChanged(ev.Component.Entity())
		}
	})
	s.assetListener = s.assets.Events().Register(func(ev assets.Event) {
		switch ev.Type {
		case assets.EventMeshDeleted:
			s.OnMeshAssetDeleted(ev.Mesh)
		case assets.EventMaterialDeleted:
			s.OnMaterialDeleted(ev.Material)
		}
	})

	for c := range s.registry.MeshComponents() {
		s.OnComponentAdded(c)
	}
	for c := range s.registry.BillboardComponents() {
		s.OnBillboardAdded(c)
	}
}

// OnUnload unsubscribes and releases every group.
func (s *MeshInstancingSystem) OnUnload() {
	if !s.loaded {
		return
	}
	s.registry.MeshEvents().Unregister(s.meshListener)
	s.registry.BillboardEvents().Unregister(s.billboardListener)
	s.registry.TransformEvents().Unregister(s.transformListener)
	s.assets.Events().Unregister(s.assetListener)

	for c := range s.registry.MeshComponents() {
		c.InstanceGroup = containers.Handle{}
	}
	for c := range s.registry.BillboardComponents() {
		c.InstanceGroup = containers.Handle{}
	}
	for _, g := range s.groups.All() {
		g.release()
	}
	s.groups.Clear()
	s.meshOrder = nil
	s.billboardOrder = nil
	clear(s.meshIndex)
	clear(s.billboardIndex)
	s.loaded = false
}

func (s *MeshInstancingSystem) Shutdown() error {
	s.OnUnload()
	return nil
}

/**
 * @brief Applies the fallback mesh and materials where they are missing and
 * sorts the component into its group.
 */
func (s *MeshInstancingSystem) OnComponentAdded(c *scene.MeshComponent) {
	if c.MeshAsset == nil {
		c.MeshAsset = s.assets.GetDefaultMeshAsset()
	}
	s.prepareMaterials(c)
	s.sortMesh(c)
}

/**
 * @brief Re-sorts the component. An empty material list means the mesh was
 * swapped and the defaults are applied. Calling it again without a change
 * leaves membership as it is.
 */
func (s *MeshInstancingSystem) OnComponentUpdated(c *scene.MeshComponent) {
	if c.MeshAsset != nil {
		s.prepareMaterials(c)
	}
	s.sortMesh(c)
}

// OnComponentDeleted removes the component from its group, if it has one.
func (s *MeshInstancingSystem) OnComponentDeleted(c *scene.MeshComponent) {
	s.unsortMesh(c)
}

/**
 * @brief Marks the instance of e dirty in the groups holding its mesh and
 * billboard. Entities without either are ignored.
 */
func (s *MeshInstancingSystem) OnTransformChanged(e scene.Entity) {
	if c := s.registry.Mesh(e); c != nil {
		if g, ok := s.groups.Get(c.InstanceGroup); ok {
			g.FlagDirty(e)
		}
	}
	if c := s.registry.Billboard(e); c != nil {
		if g, ok := s.groups.Get(c.InstanceGroup); ok {
			g.FlagDirty(e)
		}
	}
}

/**
 * @brief Flushes every group once and destroys the groups left empty. It
 * must be called once per tick and never from inside itself.
 */
func (s *MeshInstancingSystem) Update() {
	if !core.Assert(!s.updating, "MeshInstancingSystem.Update re-entered") {
		return
	}
	s.updating = true
	defer func() { s.updating = false }()

	s.meshOrder = s.flushAndReap(s.meshOrder)
	s.billboardOrder = s.flushAndReap(s.billboardOrder)
}

func (s *MeshInstancingSystem) flushAndReap(order []containers.Handle) []containers.Handle {
	for i := 0; i < len(order); i++ {
		g, ok := s.groups.Get(order[i])
		if !ok {
			core.Assert(false, "stale instance group handle %v in visiting order", order[i])
			order = slices.Delete(order, i, i+1)
			i--
			continue
		}
		g.ProcessUpdates()
		if g.InstanceCount() == 0 {
			s.discard(g)
			// The next group shifted into slot i.
			order = slices.Delete(order, i, i+1)
			i--
		}
	}
	return order
}

/**
 * @brief Destroys every group built on the deleted mesh. Its members stay in
 * the scene without a mesh and without a group.
 */
func (s *MeshInstancingSystem) OnMeshAssetDeleted(mesh *assets.MeshAsset) {
	if mesh == nil {
		return
	}
	for _, h := range slices.Clone(s.meshIndex[mesh]) {
		g, ok := s.groups.Get(h)
		if !ok {
			continue
		}
		for _, e := range g.members {
			if c := s.registry.Mesh(e); c != nil && c.InstanceGroup == h {
				c.InstanceGroup = containers.Handle{}
			}
		}
		s.destroyGroup(g)
	}
	for c := range s.registry.MeshComponents() {
		if c.MeshAsset == mesh {
			c.MeshAsset = nil
			c.InstanceGroup = containers.Handle{}
		}
	}
}

/**
 * @brief Replaces the deleted material with the fallback in every group key
 * and every component. A group whose new key already exists is merged into
 * the existing group.
 */
func (s *MeshInstancingSystem) OnMaterialDeleted(material *assets.Material) {
	fallback := s.assets.GetDefaultMaterial()
	if material == nil || material == fallback {
		return
	}

	var affected []*InstanceGroup
	for g := range s.liveGroups(s.meshOrder) {
		if slices.Contains(g.materials, material) {
			affected = append(affected, g)
		}
	}
	for _, g := range affected {
		materials := slices.Clone(g.materials)
		for i, m := range materials {
			if m == material {
				materials[i] = fallback
			}
		}
		s.rekeyMeshGroup(g, materials)
	}
	for c := range s.registry.MeshComponents() {
		for i, m := range c.Materials {
			if m == material {
				c.Materials[i] = fallback
			}
		}
	}

	if h, ok := s.billboardIndex[material]; ok {
		if g, ok := s.groups.Get(h); ok {
			s.rekeyBillboardGroup(g, fallback)
		}
	}
	for c := range s.registry.BillboardComponents() {
		if c.Material == material {
			c.Material = fallback
		}
	}
}

func (s *MeshInstancingSystem) OnBillboardAdded(c *scene.BillboardComponent) {
	if c.Material == nil {
		c.Material = s.assets.GetDefaultMaterial()
	}
	s.sortBillboard(c)
}

func (s *MeshInstancingSystem) OnBillboardUpdated(c *scene.BillboardComponent) {
	s.OnBillboardAdded(c)
}

func (s *MeshInstancingSystem) OnBillboardDeleted(c *scene.BillboardComponent) {
	if g, ok := s.groups.Get(c.InstanceGroup); ok {
		g.RemoveInstance(c.Entity())
	}
	c.InstanceGroup = containers.Handle{}
}

// MeshGroups iterates the non-empty mesh groups in creation order.
func (s *MeshInstancingSystem) MeshGroups() iter.Seq[*InstanceGroup] {
	return s.liveGroups(s.meshOrder)
}

// BillboardGroups iterates the non-empty billboard groups in creation order.
func (s *MeshInstancingSystem) BillboardGroups() iter.Seq[*InstanceGroup] {
	return s.liveGroups(s.billboardOrder)
}

// GroupCount returns the number of non-empty mesh groups.
func (s *MeshInstancingSystem) GroupCount() int {
	return countGroups(s.MeshGroups())
}

func (s *MeshInstancingSystem) BillboardGroupCount() int {
	return countGroups(s.BillboardGroups())
}

// Group resolves a handle cached on a component.
func (s *MeshInstancingSystem) Group(h containers.Handle) (*InstanceGroup, bool) {
	return s.groups.Get(h)
}

// DrawCommands collects one draw call per non-empty group, meshes first.
func (s *MeshInstancingSystem) DrawCommands() []renderer.DrawCommand {
	cmds := renderer.CollectDrawCommands(s.MeshGroups())
	return append(cmds, renderer.CollectDrawCommands(s.BillboardGroups())...)
}

func (s *MeshInstancingSystem) liveGroups(order []containers.Handle) iter.Seq[*InstanceGroup] {
	return func(yield func(*InstanceGroup) bool) {
		for _, h := range order {
			g, ok := s.groups.Get(h)
			if !ok || g.InstanceCount() == 0 {
				continue
			}
			if !yield(g) {
				return
			}
		}
	}
}

func countGroups(groups iter.Seq[*InstanceGroup]) int {
	n := 0
	for range groups {
		n++
	}
	return n
}

// prepareMaterials sizes the material list to the submesh count, padding
// with the fallback material, and replaces nil entries.
func (s *MeshInstancingSystem) prepareMaterials(c *scene.MeshComponent) {
	fallback := s.assets.GetDefaultMaterial()
	want := c.MeshAsset.SubmeshCount
	if len(c.Materials) == 0 {
		c.Materials = slices.Repeat([]*assets.Material{fallback}, want)
		return
	}
	if n := len(c.Materials); n != want {
		core.LogWarn("mesh '%s' has %d submeshes but %d materials were given, resizing", c.MeshAsset.Name, want, n)
		if n > want {
			c.Materials = c.Materials[:want:want]
		} else {
			c.Materials = append(c.Materials, slices.Repeat([]*assets.Material{fallback}, want-n)...)
		}
	}
	for i, m := range c.Materials {
		if m == nil {
			core.LogWarn("mesh '%s' material %d is nil, using the fallback", c.MeshAsset.Name, i)
			c.Materials[i] = fallback
		}
	}
}

// sortMesh removes c from its group, then inserts it into the group of its
// current key. A nil mesh leaves it ungrouped.
func (s *MeshInstancingSystem) sortMesh(c *scene.MeshComponent) {
	s.unsortMesh(c)
	if c.MeshAsset == nil {
		return
	}
	g := s.findMeshGroup(c.MeshAsset, c.Materials)
	if g == nil {
		g = s.createGroup(instanceGroupConfig{
			meshAsset:  c.MeshAsset,
			materials:  c.Materials,
			recordSize: MeshRecordSize,
			encode:     s.meshEncoder,
		})
		s.meshIndex[g.meshAsset] = append(s.meshIndex[g.meshAsset], g.handle)
		s.meshOrder = append(s.meshOrder, g.handle)
	}
	g.AddInstance(c.Entity())
	c.InstanceGroup = g.handle
}

func (s *MeshInstancingSystem) unsortMesh(c *scene.MeshComponent) {
	if g, ok := s.groups.Get(c.InstanceGroup); ok {
		g.RemoveInstance(c.Entity())
	}
	c.InstanceGroup = containers.Handle{}
}

func (s *MeshInstancingSystem) findMeshGroup(mesh *assets.MeshAsset, materials []*assets.Material) *InstanceGroup {
	for _, h := range s.meshIndex[mesh] {
		if g, ok := s.groups.Get(h); ok && g.hasKey(mesh, materials) {
			return g
		}
	}
	return nil
}

func (s *MeshInstancingSystem) sortBillboard(c *scene.BillboardComponent) {
	if g, ok := s.groups.Get(c.InstanceGroup); ok {
		g.RemoveInstance(c.Entity())
	}
	g, ok := s.groups.Get(s.billboardIndex[c.Material])
	if !ok {
		g = s.createGroup(instanceGroupConfig{
			meshAsset:  s.assets.GetBaseQuad(),
			materials:  []*assets.Material{c.Material},
			recordSize: BillboardRecordSize,
			encode:     s.billboardEncoder,
			billboard:  true,
		})
		s.billboardIndex[c.Material] = g.handle
		s.billboardOrder = append(s.billboardOrder, g.handle)
	}
	g.AddInstance(c.Entity())
	c.InstanceGroup = g.handle
}

func (s *MeshInstancingSystem) createGroup(config instanceGroupConfig) *InstanceGroup {
	label := "instances:" + config.meshAsset.Name
	if config.billboard {
		label = "billboards:" + config.materials[0].Name
	}
	config.buffer = s.buffers.CreateBuffer(label)
	config.coalesce = s.config.CoalesceWrites
	config.capacity = s.config.InitialGroupCapacity

	g := newInstanceGroup(config)
	g.handle = s.groups.Insert(g)
	core.LogDebug("Created instance group '%s' with %d material(s).", label, len(config.materials))
	return g
}

// rekeyMeshGroup gives g a new material list, merging it into the group
// that already holds that key if there is one.
func (s *MeshInstancingSystem) rekeyMeshGroup(g *InstanceGroup, materials []*assets.Material) {
	if target := s.findMeshGroup(g.meshAsset, materials); target != nil && target != g {
		s.merge(target, g)
		return
	}
	g.materials = materials
}

func (s *MeshInstancingSystem) rekeyBillboardGroup(g *InstanceGroup, material *assets.Material) {
	if target, ok := s.groups.Get(s.billboardIndex[material]); ok && target != g {
		s.merge(target, g)
		return
	}
	delete(s.billboardIndex, g.materials[0])
	g.materials = []*assets.Material{material}
	s.billboardIndex[material] = g.handle
}

// merge moves every member of src into dst and destroys src.
func (s *MeshInstancingSystem) merge(dst, src *InstanceGroup) {
	core.LogDebug("Merging instance group of '%s' (%d members) into an equal key.", src.meshName(), src.InstanceCount())
	for _, e := range src.members {
		dst.AddInstance(e)
		if src.billboard {
			if c := s.registry.Billboard(e); c != nil {
				c.InstanceGroup = dst.handle
			}
		} else if c := s.registry.Mesh(e); c != nil {
			c.InstanceGroup = dst.handle
		}
	}
	s.destroyGroup(src)
}

// destroyGroup destroys g outside of an Update pass.
func (s *MeshInstancingSystem) destroyGroup(g *InstanceGroup) {
	h := g.handle
	if g.billboard {
		s.billboardOrder = slices.DeleteFunc(s.billboardOrder, func(o containers.Handle) bool { return o == h })
	} else {
		s.meshOrder = slices.DeleteFunc(s.meshOrder, func(o containers.Handle) bool { return o == h })
	}
	s.discard(g)
}

// discard drops g from the key indexes and the group table and releases its
// buffer. The caller removes it from the visiting order.
func (s *MeshInstancingSystem) discard(g *InstanceGroup) {
	h := g.handle
	if g.billboard {
		if s.billboardIndex[g.materials[0]] == h {
			delete(s.billboardIndex, g.materials[0])
		}
	} else {
		bucket := slices.DeleteFunc(s.meshIndex[g.meshAsset], func(o containers.Handle) bool { return o == h })
		if len(bucket) == 0 {
			delete(s.meshIndex, g.meshAsset)
		} else {
			s.meshIndex[g.meshAsset] = bucket
		}
	}
	s.groups.Remove(h)
	core.LogDebug("Destroyed instance group of '%s'.", g.meshName())
	g.release()
}
