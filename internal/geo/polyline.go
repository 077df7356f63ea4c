package geo

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidPoints is returned when an annotation's flat point list cannot
// form a line.
var ErrInvalidPoints = errors.New("invalid annotation points")

// ParseAnnotationPoints builds an annotation path from a flat
// [x1,y1,x2,y2,...] list and clamps it to the pitch. The path needs two
// distinct finite points, both before and after clamping, so a zero-length
// annotation is refused.
func ParseAnnotationPoints(points []float64) (geom.LineString, error) {
	if len(points) < 4 || len(points)%2 != 0 {
		return geom.LineString{}, fmt.Errorf("%w: need an even count of at least 4 values, got %d", ErrInvalidPoints, len(points))
	}

	seq := geom.NewSequence(append([]float64(nil), points...), geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %v", ErrInvalidPoints, err)
	}
	clamped, err := ls.TransformXY(func(xy geom.XY) geom.XY {
		return geom.XY{X: ClampCoordinate(xy.X), Y: ClampCoordinate(xy.Y)}
	})
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: off the pitch: %v", ErrInvalidPoints, err)
	}
	return clamped, nil
}

// FlatPoints returns the XY values of ls as [x1,y1,x2,y2,...].
func FlatPoints(ls geom.LineString) []float64 {
	seq := ls.Coordinates()
	out := make([]float64, 0, 2*seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		out = append(out, xy.X, xy.Y)
	}
	return out
}
