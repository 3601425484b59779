package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/orng/engine/core"
)

// Descriptor kinds.
const (
	KindMesh     = "mesh"
	KindMaterial = "material"
)

// descriptor is the TOML file describing an asset, e.g.
//
//	kind = "mesh"
//	name = "tree"
//	submeshes = 2
type descriptor struct {
	Kind      string `toml:"kind"`
	Name      string `toml:"name"`
	Submeshes int    `toml:"submeshes"`
}

// LoadResult is handed to the LoadAsync callback on the tick thread. Exactly
// one of Mesh, Material and Err is set.
type LoadResult struct {
	Path     string
	Mesh     *MeshAsset
	Material *Material
	Err      error
}

type loaded struct {
	path string
	desc descriptor
	err  error
	done func(LoadResult)
}

func readDescriptor(path string) (descriptor, error) {
	var d descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse asset descriptor '%s': %w", path, err)
	}
	if d.Name == "" {
		d.Name = filepath.Base(path)
	}
	switch d.Kind {
	case KindMesh, KindMaterial:
	default:
		return d, fmt.Errorf("asset descriptor '%s' has unknown kind '%s'", path, d.Kind)
	}
	return d, nil
}

/**
 * @brief Reads the asset descriptor at path on a loader worker. The asset is
 * registered, and done is called, on the tick thread by the next
 * ProcessPending after the read finished. done may be nil.
 */
func (am *AssetManager) LoadAsync(path string, done func(LoadResult)) error {
	path = filepath.Clean(path)
	return am.jobs.Submit(core.JobTask{
		Run: func() error {
			d, err := readDescriptor(path)
			am.finishLoad(loaded{path: path, desc: d, err: err, done: done})
			return err
		},
	})
}

func (am *AssetManager) finishLoad(l loaded) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaded = append(am.loaded, l)
}

// applyLoads registers the finished loads. Tick thread only.
func (am *AssetManager) applyLoads() int {
	am.mutex.Lock()
	batch := am.loaded
	am.loaded = nil
	am.mutex.Unlock()

	for _, l := range batch {
		res := LoadResult{Path: l.path, Err: l.err}
		if l.err == nil {
			switch l.desc.Kind {
			case KindMesh:
				res.Mesh = am.CreateMeshAsset(l.desc.Name, l.path, l.desc.Submeshes)
			case KindMaterial:
				res.Material = am.CreateMaterial(l.desc.Name, l.path)
			}
		}
		if l.done != nil {
			l.done(res)
		}
	}
	return len(batch)
}
