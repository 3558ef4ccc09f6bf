package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance is the default equality tolerance for pose comparisons.
const Tolerance = 1e-9

// gimbalEpsilon is how close |sin(ey)| may come to one before the Z-Y-X
// decomposition is treated as locked.
const gimbalEpsilon = 1e-12

// Pose6d is an immutable rigid-body transform. The zero value has a zero
// quaternion and is not a valid rotation; use Identity.
type Pose6d struct {
	t r3.Vec
	q quat.Number
}

// Identity returns the transform that leaves every point unchanged.
func Identity() Pose6d {
	return Pose6d{q: quat.Number{Real: 1}}
}

// New builds a pose from a translation and a rotation quaternion. The
// quaternion is normalised; a zero quaternion is treated as identity.
func New(t r3.Vec, q quat.Number) Pose6d {
	return Pose6d{t: t, q: normalise(q)}
}

// FromTranslation returns a pure translation.
func FromTranslation(x, y, z float64) Pose6d {
	return Pose6d{t: r3.Vec{X: x, Y: y, Z: z}, q: quat.Number{Real: 1}}
}

// FromTranslationEuler builds a pose from a translation and Z-Y-X Euler
// angles in radians.
func FromTranslationEuler(t r3.Vec, ez, ey, ex float64) Pose6d {
	qz := quat.Number{Real: math.Cos(ez / 2), Kmag: math.Sin(ez / 2)}
	qy := quat.Number{Real: math.Cos(ey / 2), Jmag: math.Sin(ey / 2)}
	qx := quat.Number{Real: math.Cos(ex / 2), Imag: math.Sin(ex / 2)}
	return Pose6d{t: t, q: normalise(quat.Mul(quat.Mul(qz, qy), qx))}
}

// FromMatrix builds a pose from a 3x3 rotation matrix and a translation.
// The matrix is assumed orthonormal.
func FromMatrix(m [3][3]float64, t r3.Vec) Pose6d {
	return Pose6d{t: t, q: matrixToQuat(m)}
}

// Translation returns the translation component.
func (p Pose6d) Translation() r3.Vec { return p.t }

// Rotation returns the unit quaternion of the orientation.
func (p Pose6d) Rotation() quat.Number { return p.q }

// Quaternion returns the orientation as (qx, qy, qz, qw).
func (p Pose6d) Quaternion() (qx, qy, qz, qw float64) {
	return p.q.Imag, p.q.Jmag, p.q.Kmag, p.q.Real
}

// Mul returns p ∘ o: o is applied first, then p.
func (p Pose6d) Mul(o Pose6d) Pose6d {
	return Pose6d{
		t: r3.Add(p.t, rotate(p.q, o.t)),
		q: normalise(quat.Mul(p.q, o.q)),
	}
}

// Compose returns a ∘ b for any number of poses, left to right:
// Compose(a, b, c) == a.Mul(b).Mul(c).
func Compose(poses ...Pose6d) Pose6d {
	out := Identity()
	for _, p := range poses {
		out = out.Mul(p)
	}
	return out
}

// Inverse returns the transform in the opposite frame direction.
func (p Pose6d) Inverse() Pose6d {
	qi := quat.Conj(p.q)
	return Pose6d{t: r3.Scale(-1, rotate(qi, p.t)), q: qi}
}

// Apply transforms a point from the source frame into the target frame.
func (p Pose6d) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.t, rotate(p.q, v))
}

// Matrix returns the 3x3 rotation matrix.
func (p Pose6d) Matrix() [3][3]float64 {
	w, x, y, z := p.q.Real, p.q.Imag, p.q.Jmag, p.q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// EulerZYX returns the Z-Y-X Euler angles of the orientation. Near
// ey = ±π/2 the decomposition is not unique; ex is reported as zero and the
// remaining rotation is folded into ez.
func (p Pose6d) EulerZYX() (ez, ey, ex float64) {
	m := p.Matrix()
	sy := -m[2][0]
	if sy >= 1 {
		sy = 1
	} else if sy <= -1 {
		sy = -1
	}
	ey = math.Asin(sy)
	if math.Abs(sy) > 1-gimbalEpsilon {
		return math.Atan2(-m[0][1], m[1][1]), ey, 0
	}
	ez = math.Atan2(m[1][0], m[0][0])
	ex = math.Atan2(m[2][1], m[2][2])
	return ez, ey, ex
}

// ApproxEqual reports whether a and b agree within tol on translation and
// on every rotation matrix entry. Matrices are compared so that q and -q,
// which describe the same rotation, are treated as equal.
func ApproxEqual(a, b Pose6d, tol float64) bool {
	if math.Abs(a.t.X-b.t.X) > tol || math.Abs(a.t.Y-b.t.Y) > tol || math.Abs(a.t.Z-b.t.Z) > tol {
		return false
	}
	ma, mb := a.Matrix(), b.Matrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(ma[i][j]-mb[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func (p Pose6d) String() string {
	ez, ey, ex := p.EulerZYX()
	return fmt.Sprintf("t=(%.6g, %.6g, %.6g) ezyx=(%.6g, %.6g, %.6g)",
		p.t.X, p.t.Y, p.t.Z, ez, ey, ex)
}

func rotate(q quat.Number, v r3.Vec) r3.Vec {
	r := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalise(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func matrixToQuat(m [3][3]float64) quat.Number {
	var q quat.Number
	trace := m[0][0] + m[1][1] + m[2][2]
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{
			Real: 0.25 / s,
			Imag: (m[2][1] - m[1][2]) * s,
			Jmag: (m[0][2] - m[2][0]) * s,
			Kmag: (m[1][0] - m[0][1]) * s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: 0.25 * s,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: 0.25 * s,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: 0.25 * s,
		}
	}
	return normalise(q)
}
