package calibration

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/LucasStrand/no-bulls-hit/board"
)

// ErrDegenerate reports that the submitted points cannot produce a
// usable homography (collinear clicks, repeated clicks, or a solve
// whose matrix fails the round-trip check).
var ErrDegenerate = errors.New("calibration: degenerate point configuration")

// roundTripTolerance is the maximum canonical-space error allowed when
// mapping each clicked point back through the solved homography.
const roundTripTolerance = 1e-6

// solveHomography computes the 3x3 projective transform mapping each
// image point onto the matching canonical reference point. Points are
// Hartley-normalized before the DLT solve so poor pixel conditioning
// does not leak into the singular value check.
func solveHomography(img [4]ImagePoint, world [4]board.CanonicalPoint) ([9]float64, error) {
	var h [9]float64

	srcT, srcPts := normalizeImagePoints(img)
	dstT, dstPts := normalizeWorldPoints(world)

	// Two DLT rows per correspondence, eight equations in nine unknowns.
	a := mat.NewDense(8, 9, nil)
	for i := 0; i < 4; i++ {
		x, y := srcPts[i][0], srcPts[i][1]
		u, v := dstPts[i][0], dstPts[i][1]
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return h, ErrDegenerate
	}

	// A rank deficit means the correspondences do not pin down a unique
	// transform, which is what collinear or repeated clicks produce.
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[len(sv)-1]/sv[0] < 1e-9 {
		return h, ErrDegenerate
	}

	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hn.Set(i, j, v.At(3*i+j, 8))
		}
	}

	// Denormalize: H = inv(Tdst) * Hn * Tsrc.
	var dstInv mat.Dense
	if err := dstInv.Inverse(dstT); err != nil {
		return h, ErrDegenerate
	}
	var tmp, full mat.Dense
	tmp.Mul(hn, srcT)
	full.Mul(&dstInv, &tmp)

	scale := full.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return h, ErrDegenerate
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			val := full.At(i, j) / scale
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return h, ErrDegenerate
			}
			h[3*i+j] = val
		}
	}

	// Round-trip check: every clicked point must land on its reference.
	for i := 0; i < 4; i++ {
		px, py, err := projectMatrix(h, img[i].X, img[i].Y)
		if err != nil {
			return h, ErrDegenerate
		}
		if math.Hypot(px-world[i].X, py-world[i].Y) > roundTripTolerance {
			return h, ErrDegenerate
		}
	}

	return h, nil
}

// projectMatrix applies a row-major homography to a point.
func projectMatrix(h [9]float64, x, y float64) (float64, float64, error) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < 1e-12 {
		return 0, 0, ErrDegenerate
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, nil
}

// normalizeImagePoints translates the centroid to the origin and scales
// the mean distance to sqrt(2), returning the similarity transform and
// the transformed points.
func normalizeImagePoints(pts [4]ImagePoint) (*mat.Dense, [4][2]float64) {
	raw := make([][2]float64, 4)
	for i, p := range pts {
		raw[i] = [2]float64{p.X, p.Y}
	}
	return normalize(raw)
}

func normalizeWorldPoints(pts [4]board.CanonicalPoint) (*mat.Dense, [4][2]float64) {
	raw := make([][2]float64, 4)
	for i, p := range pts {
		raw[i] = [2]float64{p.X, p.Y}
	}
	return normalize(raw)
}

func normalize(pts [][2]float64) (*mat.Dense, [4][2]float64) {
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p[0]-cx, p[1]-cy)
	}
	meanDist /= float64(len(pts))

	scale := 1.0
	if meanDist > 0 {
		scale = math.Sqrt2 / meanDist
	}

	t := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * cx,
		0, scale, -scale * cy,
		0, 0, 1,
	})

	var out [4][2]float64
	for i, p := range pts {
		out[i] = [2]float64{scale * (p[0] - cx), scale * (p[1] - cy)}
	}
	return t, out
}
