package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-5

func TestTransformLocalTranslation(t *testing.T) {
	tr := TransformFromPosition(NewVec3(1, 2, 3))
	assert.True(t, tr.GetLocal().Translation().Compare(NewVec3(1, 2, 3), tolerance))
	assert.False(t, tr.IsDirty)
}

func TestTransformWorldFollowsParent(t *testing.T) {
	parent := TransformFromPosition(NewVec3(10, 0, 0))
	child := TransformFromPosition(NewVec3(0, 5, 0))
	child.Parent = parent

	assert.True(t, child.GetWorld().Translation().Compare(NewVec3(10, 5, 0), tolerance))

	parent.SetPosition(NewVec3(-1, 0, 0))
	assert.True(t, child.GetWorld().Translation().Compare(NewVec3(-1, 5, 0), tolerance))
}

func TestTransformScaleUnderRotation(t *testing.T) {
	rot := NewQuatFromAxisAngle(NewVec3(0, 1, 0), DegToRad(90), true)
	tr := TransformFromPositionRotationScale(NewVec3(1, 1, 1), rot, NewVec3(2, 3, 4))
	w := tr.GetWorld()
	assert.True(t, w.ScaleComponents().Compare(NewVec3(2, 3, 4), 1e-4))
	assert.True(t, w.Translation().Compare(NewVec3(1, 1, 1), tolerance))
}

func TestNilTransformIsIdentity(t *testing.T) {
	var tr *Transform
	assert.Equal(t, NewMat4Identity(), tr.GetWorld())
}

func TestQuaternionNormalizeZero(t *testing.T) {
	assert.Equal(t, NewQuatIdentity(), Quaternion{}.Normalize())
	q := Quaternion{0, 0, 0, 2}.Normalize()
	assert.InDelta(t, 1.0, q.W, tolerance)
}

func TestMat4MulIdentity(t *testing.T) {
	m := NewMat4Translation(NewVec3(4, 5, 6)).Mul(NewMat4Scale(NewVec3(2, 2, 2)))
	assert.True(t, m.Mul(NewMat4Identity()).Compare(m, tolerance))
	assert.True(t, m.Translation().Compare(NewVec3(8, 10, 12), tolerance))
}
