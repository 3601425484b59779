package systems

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/orng/engine/math"
	"github.com/spaghettifunk/orng/engine/scene"
)

// Per-instance record sizes in bytes. Both are multiples of 16 so they can
// back a std430 array directly.
const (
	// world matrix, entity id, 12 bytes padding
	MeshRecordSize = 80
	// position vec3 + pad, scale vec3 + pad
	BillboardRecordSize = 32
)

// RecordEncoder writes the record of one instance into dst, which is
// exactly one record long.
type RecordEncoder func(e scene.Entity, dst []byte)

func putFloat(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, stdmath.Float32bits(v))
}

func getFloat(src []byte) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(src))
}

// EncodeMeshRecord stores the matrix in Data order, which is the column
// major layout shaders read, followed by the entity id used for picking.
func EncodeMeshRecord(dst []byte, world math.Mat4, entityID uint32) {
	_ = dst[MeshRecordSize-1]
	for i, f := range world.Data {
		putFloat(dst[i*4:], f)
	}
	binary.LittleEndian.PutUint32(dst[64:], entityID)
	clear(dst[68:MeshRecordSize])
}

func DecodeMeshRecord(src []byte) (world math.Mat4, entityID uint32) {
	_ = src[MeshRecordSize-1]
	for i := range world.Data {
		world.Data[i] = getFloat(src[i*4:])
	}
	return world, binary.LittleEndian.Uint32(src[64:])
}

func EncodeBillboardRecord(dst []byte, position, scale math.Vec3) {
	_ = dst[BillboardRecordSize-1]
	putVec3(dst[0:], position)
	putVec3(dst[16:], scale)
}

func DecodeBillboardRecord(src []byte) (position, scale math.Vec3) {
	_ = src[BillboardRecordSize-1]
	return getVec3(src[0:]), getVec3(src[16:])
}

func putVec3(dst []byte, v math.Vec3) {
	putFloat(dst[0:], v.X)
	putFloat(dst[4:], v.Y)
	putFloat(dst[8:], v.Z)
	clear(dst[12:16])
}

func getVec3(src []byte) math.Vec3 {
	return math.NewVec3(getFloat(src[0:]), getFloat(src[4:]), getFloat(src[8:]))
}

// meshRecordEncoder reads the world transform at encode time, so a flush
// always sees the latest state.
func meshRecordEncoder(registry *scene.Registry) RecordEncoder {
	return func(e scene.Entity, dst []byte) {
		world := math.NewMat4Identity()
		if t := registry.Transform(e); t != nil {
			world = t.World()
		}
		EncodeMeshRecord(dst, world, e.ID)
	}
}

func billboardRecordEncoder(registry *scene.Registry) RecordEncoder {
	return func(e scene.Entity, dst []byte) {
		position, scale := math.NewVec3Zero(), math.NewVec3One()
		if t := registry.Transform(e); t != nil {
			world := t.World()
			position, scale = world.Translation(), world.ScaleComponents()
		}
		EncodeBillboardRecord(dst, position, scale)
	}
}
