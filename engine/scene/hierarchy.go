package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/engine/math"
)

var ErrHierarchyCycle = errors.New("entity cannot be parented to its own descendant")

func (r *Registry) transformOf(e Entity) (*TransformComponent, error) {
	if !r.Valid(e) {
		return nil, fmt.Errorf("transform of %v: %w", e, core.ErrInvalidEntity)
	}
	return r.transforms[e], nil
}

func (r *Registry) SetPosition(e Entity, position math.Vec3) error {
	t, err := r.transformOf(e)
	if err != nil {
		return err
	}
	t.transform.SetPosition(position)
	r.publishTransformUpdate(t, TransformPosition)
	return nil
}

func (r *Registry) SetRotation(e Entity, rotation math.Quaternion) error {
	t, err := r.transformOf(e)
	if err != nil {
		return err
	}
	t.transform.SetRotation(rotation)
	r.publishTransformUpdate(t, TransformRotation)
	return nil
}

func (r *Registry) SetScale(e Entity, scale math.Vec3) error {
	t, err := r.transformOf(e)
	if err != nil {
		return err
	}
	t.transform.SetScale(scale)
	r.publishTransformUpdate(t, TransformScale)
	return nil
}

// SetParent reparents child under parent. The zero Entity as parent makes
// child a root. The local transform is kept, so the world transform of the
// whole subtree changes.
func (r *Registry) SetParent(child, parent Entity) error {
	t, err := r.transformOf(child)
	if err != nil {
		return err
	}
	var p *TransformComponent
	if !parent.IsZero() {
		if p, err = r.transformOf(parent); err != nil {
			return err
		}
		for a := p; a != nil; a = r.transforms[a.parent] {
			if a.entity == child {
				return fmt.Errorf("parent '%s' under '%s': %w", r.Name(child), r.Name(parent), ErrHierarchyCycle)
			}
		}
	}
	if t.parent == parent {
		return nil
	}

	r.detach(t)
	if p != nil {
		t.parent = parent
		t.transform.Parent = p.transform
		p.children = append(p.children, child)
	}
	r.publishTransformUpdate(t, TransformParent)
	return nil
}

func (r *Registry) detach(t *TransformComponent) {
	if t.parent.IsZero() {
		return
	}
	if p, ok := r.transforms[t.parent]; ok {
		if i := slices.Index(p.children, t.entity); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
	}
	t.parent = Entity{}
	t.transform.Parent = nil
}

// publishTransformUpdate notifies listeners about t and every descendant,
// parents before children.
func (r *Registry) publishTransformUpdate(t *TransformComponent, code uint32) {
	r.transformEvents.Dispatch(TransformEvent{Type: core.ComponentUpdated, Component: t, SubEventCode: code})
	for _, child := range t.children {
		if c, ok := r.transforms[child]; ok {
			r.publishTransformUpdate(c, TransformInherited)
		}
	}
}
