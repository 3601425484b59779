package testbed

import (
	"fmt"

	"github.com/spaghettifunk/orng/engine"
	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/engine/math"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
)

const forestSize = 64

type TestGame struct {
	*engine.Game
}

type gameState struct {
	ticks uint64

	cubes  []scene.Entity
	trees  []scene.Entity
	lights []scene.Entity

	cubeMesh  *assets.MeshAsset
	treeMesh  *assets.MeshAsset
	bark      *assets.Material
	leaves    *assets.Material
	autumn    *assets.Material
	flare     *assets.Material
	autumnCut bool
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name: "ORNG Testbed",
			},
			State: &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.Registry == nil || g.Assets == nil {
		return fmt.Errorf("the engine is not yet initialized with a scene and an asset manager")
	}
	state := g.State.(*gameState)
	am := g.Assets
	reg := g.Registry

	state.cubeMesh = am.CreateMeshAsset("cube", "", 1)
	state.treeMesh = am.CreateMeshAsset("tree", "", 2)
	state.bark = am.CreateMaterial("bark", "")
	state.leaves = am.CreateMaterial("leaves", "")
	state.autumn = am.CreateMaterial("autumn_leaves", "")
	state.flare = am.CreateMaterial("flare", "")

	// Three cubes, each parented to the previous one.
	var parent scene.Entity
	for i, pos := range []math.Vec3{
		math.NewVec3Zero(),
		math.NewVec3(10.0, 0.0, 1.0),
		math.NewVec3(5.0, 0.0, 1.0),
	} {
		e := reg.CreateEntity(fmt.Sprintf("cube_%d", i))
		if err := reg.SetPosition(e, pos); err != nil {
			return err
		}
		if !parent.IsZero() {
			if err := reg.SetParent(e, parent); err != nil {
				return err
			}
		}
		if _, err := reg.AddMeshComponent(e, state.cubeMesh); err != nil {
			return err
		}
		state.cubes = append(state.cubes, e)
		parent = e
	}

	// A forest in two seasons. Trees sharing a season share a draw call.
	for i := 0; i < forestSize; i++ {
		e := reg.CreateEntity(fmt.Sprintf("tree_%d", i))
		if err := reg.SetPosition(e, math.NewVec3(float32(i%8)*4, 0, float32(i/8)*4)); err != nil {
			return err
		}
		crown := state.leaves
		if i%4 == 0 {
			crown = state.autumn
		}
		if _, err := reg.AddMeshComponent(e, state.treeMesh, state.bark, crown); err != nil {
			return err
		}
		state.trees = append(state.trees, e)
	}

	for i := 0; i < 4; i++ {
		e := reg.CreateEntity(fmt.Sprintf("light_%d", i))
		if err := reg.SetPosition(e, math.NewVec3(float32(i)*8, 6, 0)); err != nil {
			return err
		}
		if _, err := reg.AddBillboardComponent(e, state.flare); err != nil {
			return err
		}
		state.lights = append(state.lights, e)
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.ticks++

	// Perform a small rotation on the root cube; the children follow.
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*deltaTime), false)
	root := g.Registry.Transform(state.cubes[0])
	if err := g.Registry.SetRotation(state.cubes[0], root.Rotation().Mul(rotation)); err != nil {
		return err
	}

	// Bob the lights.
	for i, e := range state.lights {
		pos := g.Registry.Transform(e).Position()
		pos.Y = 6 + float32((state.ticks+uint64(i))%20)/10
		if err := g.Registry.SetPosition(e, pos); err != nil {
			return err
		}
	}

	// Autumn ends: the material goes away and those trees fall back to the
	// default material.
	if state.ticks == 120 && !state.autumnCut {
		state.autumnCut = true
		if err := g.Assets.DeleteMaterial(state.autumn); err != nil {
			return err
		}
		core.LogInfo("Deleted material '%s'.", state.autumn.Name)
	}
	return nil
}

func (g *TestGame) Render(commands []renderer.DrawCommand, deltaTime float64) error {
	state := g.State.(*gameState)
	if state.ticks%60 != 1 {
		return nil
	}
	instances := 0
	for _, cmd := range commands {
		instances += cmd.InstanceCount
	}
	core.LogInfo("tick %d: %d draw call(s) for %d instance(s), dt=%.4fs", state.ticks, len(commands), instances, deltaTime)
	for _, cmd := range commands {
		core.LogDebug("  mesh '%s' x%d (buffer %d, %d material(s))", cmd.Mesh.Name, cmd.InstanceCount, cmd.Buffer, len(cmd.Materials))
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("TestGame shutting down.")
	return nil
}
