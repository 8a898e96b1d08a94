// Package histogram bins pixel addresses into a diffractogram.
//
// Samples are (address, intensity) pairs. Bin i covers [edges[i], edges[i+1])
// and the last bin also takes samples sitting on its upper edge, so every
// finite sample lands in exactly one bin. Bins are filled in parallel: the
// samples are sorted once and each worker locates its bins by binary search.
package histogram

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"emadiff/internal/models"
	"emadiff/pkg/address"
	"emadiff/pkg/logging"
	"emadiff/pkg/parallel"
)

var (
	// ErrNoSamples is returned when no finite address yields at least one bin
	ErrNoSamples = errors.New("no samples to bin")

	// ErrLengthMismatch is returned when addresses and intensities differ in length
	ErrLengthMismatch = errors.New("addresses and intensities differ in length")
)

// Options tunes Aggregate
type Options struct {
	Workers int
	// Precision is the number of decimals edges are rounded to.
	// Values <= 0 use address.DefaultPrecision.
	Precision int
	Logger    *zap.Logger
}

func round(x float64, precision int) float64 {
	return scalar.RoundEven(x, precision)
}

// Edges returns the bin edges covering the finite addresses
func Edges(addresses []float64, step float64, precision int) ([]float64, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, errors.Newf("bin step must be positive, got %v", step)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, a := range addresses {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			continue
		}
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if math.IsInf(lo, 1) {
		return nil, errors.WithStack(ErrNoSamples)
	}

	begin := round(lo-step/2, precision)
	end := round(hi+step, precision)
	n := int(math.Ceil((end - begin) / step))
	if n < 2 {
		return nil, errors.Wrapf(ErrNoSamples, "range [%v, %v) gives %d edges", begin, end, n)
	}

	edges := make([]float64, n)
	for i := range edges {
		edges[i] = begin + float64(i)*step
	}
	// rounding may leave the maximum above the closed last bin
	for edges[len(edges)-1] < hi {
		edges = append(edges, begin+float64(len(edges))*step)
	}
	return edges, nil
}

// samples holds the finite pairs sorted by address
type samples struct {
	addr []float64
	val  []float64
}

func (s *samples) Len() int           { return len(s.addr) }
func (s *samples) Less(i, j int) bool { return s.addr[i] < s.addr[j] }
func (s *samples) Swap(i, j int) {
	s.addr[i], s.addr[j] = s.addr[j], s.addr[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}

func newSamples(addresses, intensities []float64) *samples {
	s := &samples{
		addr: make([]float64, 0, len(addresses)),
		val:  make([]float64, 0, len(addresses)),
	}
	for i, a := range addresses {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			continue
		}
		s.addr = append(s.addr, a)
		s.val = append(s.val, intensities[i])
	}
	sort.Stable(s)
	return s
}

// lowerBound is the first sample with address >= x
func (s *samples) lowerBound(x float64) int {
	return sort.Search(len(s.addr), func(i int) bool { return s.addr[i] >= x })
}

// upperBound is the first sample with address > x
func (s *samples) upperBound(x float64) int {
	return sort.Search(len(s.addr), func(i int) bool { return s.addr[i] > x })
}

// bin fills row i from the samples between edges[i] and edges[i+1]
func (s *samples) bin(edges []float64, i int) models.DiffractogramRow {
	lo := s.lowerBound(edges[i])
	var hi int
	if i == len(edges)-2 {
		hi = s.upperBound(edges[i+1])
	} else {
		hi = s.lowerBound(edges[i+1])
	}

	row := models.DiffractogramRow{TwoTheta: edges[i]}
	if hi <= lo {
		row.Mean = math.NaN()
		row.StdDev = math.NaN()
		return row
	}
	vals := s.val[lo:hi]
	row.Intensity = floats.Sum(vals)
	row.Mean, row.StdDev = stat.PopMeanStdDev(vals, nil)
	return row
}

// Aggregate bins intensities by address with the given step and returns the
// edges together with one row per bin
func Aggregate(ctx context.Context, addresses, intensities []float64, step float64, opts Options) ([]float64, []models.DiffractogramRow, error) {
	if len(addresses) != len(intensities) {
		return nil, nil, errors.Wrapf(ErrLengthMismatch, "%d addresses, %d intensities",
			len(addresses), len(intensities))
	}
	log := logging.Component(opts.Logger, "histogram")
	started := time.Now()

	precision := opts.Precision
	if precision <= 0 {
		precision = address.DefaultPrecision
	}
	edges, err := Edges(addresses, step, precision)
	if err != nil {
		return nil, nil, err
	}
	s := newSamples(addresses, intensities)

	rows := make([]models.DiffractogramRow, len(edges)-1)
	err = parallel.ForEachRange(ctx, len(rows), opts.Workers, func(ctx context.Context, r parallel.Range) error {
		for i := r.Start; i < r.End; i++ {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			rows[i] = s.bin(edges, i)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "binning")
	}

	log.Debug("binned samples",
		zap.Int(logging.FieldBins, len(rows)),
		zap.Int("samples", s.Len()),
		zap.Int("dropped", len(addresses)-s.Len()),
		zap.Duration(logging.FieldDuration, time.Since(started)))
	return edges, rows, nil
}
