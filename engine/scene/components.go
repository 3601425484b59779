package scene

import (
	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/containers"
	"github.com/spaghettifunk/orng/engine/math"
)

// Entity is a generational handle. The zero Entity is never alive.
type Entity struct {
	ID      uint32
	Version uint32
}

func (e Entity) IsZero() bool {
	return e == Entity{}
}

// Transform sub-event codes carried by transform update events.
const (
	TransformPosition uint32 = iota
	TransformRotation
	TransformScale
	TransformParent
	// The entity itself did not change but an ancestor did.
	TransformInherited
)

type TransformComponent struct {
	entity    Entity
	transform *math.Transform
	parent    Entity
	children  []Entity
}

func (c *TransformComponent) Entity() Entity { return c.entity }

func (c *TransformComponent) Position() math.Vec3 { return c.transform.Position }

func (c *TransformComponent) Rotation() math.Quaternion { return c.transform.Rotation }

func (c *TransformComponent) Scale() math.Vec3 { return c.transform.Scale }

// World returns the absolute matrix, parents included.
func (c *TransformComponent) World() math.Mat4 { return c.transform.GetWorld() }

// Parent returns the zero Entity for roots.
func (c *TransformComponent) Parent() Entity { return c.parent }

func (c *TransformComponent) Children() []Entity { return c.children }

// MeshComponent makes an entity render a mesh asset with one material per
// submesh.
type MeshComponent struct {
	entity Entity
	// MeshAsset may be nil, in which case the entity is not instanced.
	MeshAsset *assets.MeshAsset
	// Materials is indexed by submesh. An empty list after an update means
	// the mesh was swapped and the defaults should be applied.
	Materials []*assets.Material
	// InstanceGroup caches the owning group. Only the instancing system
	// writes it.
	InstanceGroup containers.Handle
}

func (c *MeshComponent) Entity() Entity { return c.entity }

// BillboardComponent renders a camera-facing quad with a single material.
type BillboardComponent struct {
	entity        Entity
	Material      *assets.Material
	InstanceGroup containers.Handle
}

func (c *BillboardComponent) Entity() Entity { return c.entity }
