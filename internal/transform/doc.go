// Package transform provides the interfaces a calibration driver uses to read
// and write the extrinsic pose of a sensor or target frame.
//
// Every variant satisfies Interface. Listeners pull poses from a Provider,
// broadcasters publish a cached pose through a Broadcaster on a fixed
// period, and the calibration-backed variants keep the unknown six degrees of
// freedom in a JointStore. A variant is unusable until SetReferenceFrame has
// been called; before that, pulls return the identity pose with ErrNotReady
// and pushes fail with ErrNotReady without touching any collaborator.
//
// Frame convention: the pose exchanged for a (target, source) pair maps
// coordinates expressed in source into target. Writing a2b for the pose of
// (a, b), a2b.Mul(b2c) is a2c.
package transform
