package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RigidTolerance bounds the determinant and orthonormality checks applied to
// 4x4 homogeneous transforms.
const RigidTolerance = 1e-6

// Transform4x4 returns the pose as a row-major homogeneous matrix:
// m00,m01,m02,tx, m10,..., 0,0,0,1.
func (p Pose6d) Transform4x4() [16]float64 {
	m := p.Matrix()
	return [16]float64{
		m[0][0], m[0][1], m[0][2], p.t.X,
		m[1][0], m[1][1], m[1][2], p.t.Y,
		m[2][0], m[2][1], m[2][2], p.t.Z,
		0, 0, 0, 1,
	}
}

// FromTransform4x4 parses a row-major homogeneous matrix, rejecting anything
// that is not a proper rigid transform.
func FromTransform4x4(T [16]float64) (Pose6d, error) {
	if !IsRigid(T) {
		return Identity(), fmt.Errorf("not a rigid transform: %v", T)
	}
	m := [3][3]float64{
		{T[0], T[1], T[2]},
		{T[4], T[5], T[6]},
		{T[8], T[9], T[10]},
	}
	return FromMatrix(m, r3.Vec{X: T[3], Y: T[7], Z: T[11]}), nil
}

// IsRigid checks that T has an orthonormal rotation block with determinant
// one and a last row of [0 0 0 1].
func IsRigid(T [16]float64) bool {
	r00, r01, r02 := T[0], T[1], T[2]
	r10, r11, r12 := T[4], T[5], T[6]
	r20, r21, r22 := T[8], T[9], T[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > RigidTolerance {
		return false
	}

	// Columns must be unit length and mutually orthogonal.
	cols := [3]r3.Vec{{X: r00, Y: r10, Z: r20}, {X: r01, Y: r11, Z: r21}, {X: r02, Y: r12, Z: r22}}
	for i := 0; i < 3; i++ {
		if math.Abs(r3.Norm(cols[i])-1) > RigidTolerance {
			return false
		}
		for j := i + 1; j < 3; j++ {
			if math.Abs(r3.Dot(cols[i], cols[j])) > RigidTolerance {
				return false
			}
		}
	}

	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > RigidTolerance {
		return false
	}
	return true
}
