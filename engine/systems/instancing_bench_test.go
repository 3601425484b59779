package systems

import (
	"fmt"
	"testing"

	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/math"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
)

func benchScene(b *testing.B, n int, coalesce bool) (*scene.Registry, *MeshInstancingSystem, []scene.Entity) {
	b.Helper()
	am, err := assets.NewAssetManager(nil)
	if err != nil {
		b.Fatal(err)
	}
	reg := scene.NewRegistry()
	sys, err := NewMeshInstancingSystem(&InstancingSystemConfig{
		InitialGroupCapacity: n,
		CoalesceWrites:       coalesce,
	}, reg, am, renderer.NewHostBufferFactory())
	if err != nil {
		b.Fatal(err)
	}
	sys.OnLoad()
	mesh := am.CreateMeshAsset("cube", "", 1)
	es := make([]scene.Entity, n)
	for i := range es {
		es[i] = reg.CreateEntity("cube")
		if _, err := reg.AddMeshComponent(es[i], mesh); err != nil {
			b.Fatal(err)
		}
	}
	sys.Update()
	return reg, sys, es
}

func BenchmarkUpdateMovingHalf(b *testing.B) {
	for _, coalesce := range []bool{true, false} {
		b.Run(fmt.Sprintf("coalesce=%v", coalesce), func(b *testing.B) {
			reg, sys, es := benchScene(b, 10000, coalesce)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for j := 0; j < len(es)/2; j++ {
					_ = reg.SetPosition(es[j], math.NewVec3(float32(i), 0, 0))
				}
				sys.Update()
			}
		})
	}
}

func BenchmarkMaterialChurn(b *testing.B) {
	reg, sys, es := benchScene(b, 1000, true)
	alt := &assets.Material{Name: "alt"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := es[i%len(es)]
		_ = reg.SetMaterial(e, 0, alt)
		_ = reg.SetMaterials(e, nil)
		sys.Update()
	}
}
