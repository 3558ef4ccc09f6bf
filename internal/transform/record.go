package transform

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/extrinsic.cal/internal/fsutil"
	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// StaticTransformRate is the update rate written into every record.
const StaticTransformRate = 100

// StaticTransformRecord is one static transform publisher entry: the pose of
// Child expressed in Parent.
type StaticTransformRecord struct {
	Parent string
	Child  string
	Pose   pose.Pose6d
}

// String renders the record as a launch-file node line without the newline.
func (r StaticTransformRecord) String() string {
	t := r.Pose.Translation()
	qx, qy, qz, qw := r.Pose.Quaternion()
	args := make([]string, 0, 10)
	for _, v := range []float64{t.X, t.Y, t.Z, qx, qy, qz, qw} {
		args = append(args, strconv.FormatFloat(v, 'g', -1, 64))
	}
	args = append(args, r.Parent, r.Child, strconv.Itoa(StaticTransformRate))
	return fmt.Sprintf(`<node pkg="tf" type="static_transform_publisher" name="%s_tf_broadcaster" args="%s" />`,
		r.Child, strings.Join(args, " "))
}

// ParseStaticTransformRecord reads back a line produced by String.
func ParseStaticTransformRecord(line string) (StaticTransformRecord, error) {
	const marker = `args="`
	i := strings.Index(line, marker)
	if i < 0 {
		return StaticTransformRecord{}, fmt.Errorf("no args attribute in %q", line)
	}
	rest := line[i+len(marker):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return StaticTransformRecord{}, fmt.Errorf("unterminated args attribute in %q", line)
	}
	fields := strings.Fields(rest[:j])
	if len(fields) != 10 {
		return StaticTransformRecord{}, fmt.Errorf("expected 10 args, got %d", len(fields))
	}
	var v [7]float64
	for k := range v {
		f, err := strconv.ParseFloat(fields[k], 64)
		if err != nil {
			return StaticTransformRecord{}, fmt.Errorf("arg %d: %w", k, err)
		}
		v[k] = f
	}
	p := pose.New(r3.Vec{X: v[0], Y: v[1], Z: v[2]}, quat.Number{Real: v[6], Imag: v[3], Jmag: v[4], Kmag: v[5]})
	return StaticTransformRecord{Parent: fields[7], Child: fields[8], Pose: p}, nil
}

// appendRecord appends one record line to path. Concurrent callers writing
// the same path must serialise themselves.
func appendRecord(files fsutil.FileSystem, path string, rec StaticTransformRecord) error {
	f, err := files.OpenAppend(path)
	if err != nil {
		opsf("unable to open file: %s: %v", path, err)
		return fmt.Errorf("%w: %w", ErrFileIO, err)
	}
	if _, err := f.Write([]byte(rec.String() + "\n")); err != nil {
		f.Close()
		opsf("unable to write file: %s: %v", path, err)
		return fmt.Errorf("%w: %w", ErrFileIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFileIO, err)
	}
	return nil
}
