package renderer

import (
	"iter"
	"slices"

	"github.com/spaghettifunk/orng/engine/assets"
)

// InstanceBatch is the read-only view the renderer gets of an instance
// group. The renderer never mutates a batch.
type InstanceBatch interface {
	MeshAsset() *assets.MeshAsset
	Materials() []*assets.Material
	TransformBuffer() Buffer
	InstanceCount() int
}

// DrawCommand is one instanced draw call. Materials is a copy, the batch's
// key is not reachable through it.
type DrawCommand struct {
	Mesh          *assets.MeshAsset
	Materials     []*assets.Material
	Buffer        uint32
	InstanceCount int
}

// CollectDrawCommands turns the live batches of a frame into draw calls.
// Empty batches produce nothing.
func CollectDrawCommands[B InstanceBatch](batches iter.Seq[B]) []DrawCommand {
	var cmds []DrawCommand
	for b := range batches {
		n := b.InstanceCount()
		if n == 0 {
			continue
		}
		cmds = append(cmds, DrawCommand{
			Mesh:          b.MeshAsset(),
			Materials:     slices.Clone(b.Materials()),
			Buffer:        b.TransformBuffer().Handle(),
			InstanceCount: n,
		})
	}
	return cmds
}
