// Package pose implements the rigid-body transform used throughout the
// calibration interfaces.
//
// A Pose6d maps coordinates expressed in a source frame into a target frame.
// Composition reads right to left: a.Mul(b) applies b first, then a, so the
// pose for (a, b) composed with the pose for (b, c) is the pose for (a, c).
//
// Orientation is held as a unit quaternion (gonum num/quat) and translation
// as an r3.Vec. Euler angles follow the Z-Y-X convention,
// R = Rz(ez) * Ry(ey) * Rx(ex).
package pose
