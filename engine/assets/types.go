package assets

import "github.com/google/uuid"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

const (
	DefaultMeshName string = "default_cube"
	BaseQuadName    string = "base_quad"
)

// MeshAsset is an immutable mesh identity. Two components share a mesh only
// if they hold the same *MeshAsset.
type MeshAsset struct {
	UUID uuid.UUID
	Name string
	// Path on disk, if the asset was loaded from a file.
	Path string
	// SubmeshCount is the number of material slots the mesh exposes.
	SubmeshCount int
}

/**
 * @brief A material, which represents various properties
 * of a surface in the world. Compared by identity, never by value.
 */
type Material struct {
	UUID uuid.UUID
	Name string
	Path string
}

type EventType uint8

const (
	EventMeshDeleted EventType = iota
	EventMaterialDeleted
	EventMeshLoaded
	EventMaterialLoaded
)

func (t EventType) String() string {
	switch t {
	case EventMeshDeleted:
		return "mesh_deleted"
	case EventMaterialDeleted:
		return "material_deleted"
	case EventMeshLoaded:
		return "mesh_loaded"
	case EventMaterialLoaded:
		return "material_loaded"
	}
	return "unknown"
}

// Event reports a change to an asset. Exactly one of Mesh and Material is
// set, matching Type.
type Event struct {
	Type     EventType
	Mesh     *MeshAsset
	Material *Material
}
