package scene

import (
	"fmt"
	"iter"
	"slices"

	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/engine/math"
)

type (
	TransformEvent = core.ComponentEvent[*TransformComponent]
	MeshEvent      = core.ComponentEvent[*MeshComponent]
	BillboardEvent = core.ComponentEvent[*BillboardComponent]
)

type entityRecord struct {
	version uint32
	alive   bool
	name    string
}

// Registry stores the entities of one scene and their components. Every
// component change is published synchronously on the matching channel,
// before the call returns. A Registry is not safe for concurrent use.
type Registry struct {
	entities []entityRecord
	free     []uint32
	count    int

	transforms map[Entity]*TransformComponent
	meshes     map[Entity]*MeshComponent
	billboards map[Entity]*BillboardComponent

	transformEvents *core.EventChannel[TransformEvent]
	meshEvents      *core.EventChannel[MeshEvent]
	billboardEvents *core.EventChannel[BillboardEvent]
}

func NewRegistry() *Registry {
	return &Registry{
		transforms:      make(map[Entity]*TransformComponent),
		meshes:          make(map[Entity]*MeshComponent),
		billboards:      make(map[Entity]*BillboardComponent),
		transformEvents: core.NewEventChannel[TransformEvent](),
		meshEvents:      core.NewEventChannel[MeshEvent](),
		billboardEvents: core.NewEventChannel[BillboardEvent](),
	}
}

func (r *Registry) TransformEvents() *core.EventChannel[TransformEvent] { return r.transformEvents }

func (r *Registry) MeshEvents() *core.EventChannel[MeshEvent] { return r.meshEvents }

func (r *Registry) BillboardEvents() *core.EventChannel[BillboardEvent] { return r.billboardEvents }

// EntityCount returns the number of live entities.
func (r *Registry) EntityCount() int { return r.count }

// CreateEntity creates an entity with an identity transform.
func (r *Registry) CreateEntity(name string) Entity {
	var id uint32
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		id = uint32(len(r.entities))
		r.entities = append(r.entities, entityRecord{})
	}
	rec := &r.entities[id]
	rec.version++
	if rec.version == 0 {
		rec.version = 1
	}
	rec.alive = true
	rec.name = name
	r.count++

	e := Entity{ID: id, Version: rec.version}
	t := &TransformComponent{
		entity:    e,
		transform: math.TransformCreate(),
	}
	r.transforms[e] = t
	r.transformEvents.Dispatch(TransformEvent{Type: core.ComponentAdded, Component: t, SubEventCode: core.NoSubEvent})
	return e
}

// Valid reports whether e refers to a live entity.
func (r *Registry) Valid(e Entity) bool {
	if int(e.ID) >= len(r.entities) {
		return false
	}
	rec := r.entities[e.ID]
	return rec.alive && rec.version == e.Version
}

func (r *Registry) Name(e Entity) string {
	if !r.Valid(e) {
		return ""
	}
	return r.entities[e.ID].name
}

// DestroyEntity removes e, its components and all of its descendants.
func (r *Registry) DestroyEntity(e Entity) error {
	if !r.Valid(e) {
		return fmt.Errorf("destroy entity %v: %w", e, core.ErrInvalidEntity)
	}
	t := r.transforms[e]
	for _, child := range slices.Clone(t.children) {
		if err := r.DestroyEntity(child); err != nil {
			return err
		}
	}

	if _, ok := r.billboards[e]; ok {
		_ = r.RemoveBillboardComponent(e)
	}
	if _, ok := r.meshes[e]; ok {
		_ = r.RemoveMeshComponent(e)
	}
	r.detach(t)
	r.transformEvents.Dispatch(TransformEvent{Type: core.ComponentDeleted, Component: t, SubEventCode: core.NoSubEvent})
	delete(r.transforms, e)

	rec := &r.entities[e.ID]
	rec.alive = false
	rec.name = ""
	r.free = append(r.free, e.ID)
	r.count--
	return nil
}

func (r *Registry) Transform(e Entity) *TransformComponent {
	return r.transforms[e]
}

func (r *Registry) Mesh(e Entity) *MeshComponent {
	return r.meshes[e]
}

func (r *Registry) Billboard(e Entity) *BillboardComponent {
	return r.billboards[e]
}

// MeshComponents iterates every live mesh component in no particular order.
func (r *Registry) MeshComponents() iter.Seq[*MeshComponent] {
	return func(yield func(*MeshComponent) bool) {
		for _, c := range r.meshes {
			if !yield(c) {
				return
			}
		}
	}
}

func (r *Registry) BillboardComponents() iter.Seq[*BillboardComponent] {
	return func(yield func(*BillboardComponent) bool) {
		for _, c := range r.billboards {
			if !yield(c) {
				return
			}
		}
	}
}

// AddMeshComponent attaches a mesh. Both mesh and materials may be left
// empty; listeners fill in defaults.
func (r *Registry) AddMeshComponent(e Entity, mesh *assets.MeshAsset, materials ...*assets.Material) (*MeshComponent, error) {
	if !r.Valid(e) {
		return nil, fmt.Errorf("add mesh component: %w", core.ErrInvalidEntity)
	}
	if _, ok := r.meshes[e]; ok {
		return nil, fmt.Errorf("add mesh component to '%s': %w", r.Name(e), core.ErrDuplicateComponent)
	}
	c := &MeshComponent{
		entity:    e,
		MeshAsset: mesh,
		Materials: slices.Clone(materials),
	}
	r.meshes[e] = c
	r.meshEvents.Dispatch(MeshEvent{Type: core.ComponentAdded, Component: c, SubEventCode: core.NoSubEvent})
	return c, nil
}

// RemoveMeshComponent publishes the deletion, then drops the component.
func (r *Registry) RemoveMeshComponent(e Entity) error {
	c, ok := r.meshes[e]
	if !ok {
		return fmt.Errorf("remove mesh component: %w", core.ErrNoComponent)
	}
	r.meshEvents.Dispatch(MeshEvent{Type: core.ComponentDeleted, Component: c, SubEventCode: core.NoSubEvent})
	delete(r.meshes, e)
	return nil
}

// SetMeshAsset swaps the mesh and clears the material list.
func (r *Registry) SetMeshAsset(e Entity, mesh *assets.MeshAsset) error {
	c, ok := r.meshes[e]
	if !ok {
		return fmt.Errorf("set mesh asset: %w", core.ErrNoComponent)
	}
	c.MeshAsset = mesh
	c.Materials = nil
	return r.UpdateMesh(e)
}

// SetMaterial replaces the material of one submesh.
func (r *Registry) SetMaterial(e Entity, index int, material *assets.Material) error {
	c, ok := r.meshes[e]
	if !ok {
		return fmt.Errorf("set material: %w", core.ErrNoComponent)
	}
	if index < 0 || index >= len(c.Materials) {
		return fmt.Errorf("set material %d of %d: %w", index, len(c.Materials), core.ErrOutOfRange)
	}
	c.Materials[index] = material
	return r.UpdateMesh(e)
}

// SetMaterials replaces the whole material list.
func (r *Registry) SetMaterials(e Entity, materials []*assets.Material) error {
	c, ok := r.meshes[e]
	if !ok {
		return fmt.Errorf("set materials: %w", core.ErrNoComponent)
	}
	c.Materials = slices.Clone(materials)
	return r.UpdateMesh(e)
}

// UpdateMesh publishes an update for the mesh component of e as it is now.
func (r *Registry) UpdateMesh(e Entity) error {
	c, ok := r.meshes[e]
	if !ok {
		return fmt.Errorf("update mesh: %w", core.ErrNoComponent)
	}
	r.meshEvents.Dispatch(MeshEvent{Type: core.ComponentUpdated, Component: c, SubEventCode: core.NoSubEvent})
	return nil
}

func (r *Registry) AddBillboardComponent(e Entity, material *assets.Material) (*BillboardComponent, error) {
	if !r.Valid(e) {
		return nil, fmt.Errorf("add billboard component: %w", core.ErrInvalidEntity)
	}
	if _, ok := r.billboards[e]; ok {
		return nil, fmt.Errorf("add billboard component to '%s': %w", r.Name(e), core.ErrDuplicateComponent)
	}
	c := &BillboardComponent{entity: e, Material: material}
	r.billboards[e] = c
	r.billboardEvents.Dispatch(BillboardEvent{Type: core.ComponentAdded, Component: c, SubEventCode: core.NoSubEvent})
	return c, nil
}

func (r *Registry) RemoveBillboardComponent(e Entity) error {
	c, ok := r.billboards[e]
	if !ok {
		return fmt.Errorf("remove billboard component: %w", core.ErrNoComponent)
	}
	r.billboardEvents.Dispatch(BillboardEvent{Type: core.ComponentDeleted, Component: c, SubEventCode: core.NoSubEvent})
	delete(r.billboards, e)
	return nil
}

func (r *Registry) SetBillboardMaterial(e Entity, material *assets.Material) error {
	c, ok := r.billboards[e]
	if !ok {
		return fmt.Errorf("set billboard material: %w", core.ErrNoComponent)
	}
	c.Material = material
	r.billboardEvents.Dispatch(BillboardEvent{Type: core.ComponentUpdated, Component: c, SubEventCode: core.NoSubEvent})
	return nil
}
