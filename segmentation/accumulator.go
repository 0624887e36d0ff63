package segmentation

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/nvr-ai/go-pitchseg/histogram"
)

// Accumulator keeps a bounded FIFO history of per-frame histograms and their
// running average.
//
// The average is maintained from a running sum: the admitted histogram is
// added and the evicted one subtracted. Histogram counts are integers, so the
// sum stays exact and a bin that is empty in every retained frame is exactly
// zero in the average.
type Accumulator struct {
	capacity int
	bins     int
	entries  []histogram.Histogram // oldest first
	sum      histogram.Histogram
}

// NewAccumulator creates an empty accumulator holding at most capacity
// histograms of bins entries each.
func NewAccumulator(capacity, bins int) *Accumulator {
	return &Accumulator{
		capacity: capacity,
		bins:     bins,
		entries:  make([]histogram.Histogram, 0, capacity+1),
		sum:      histogram.New(bins),
	}
}

// Fold admits a copy of h, evicts the oldest entry when the capacity is
// exceeded and returns the new average as a fresh histogram.
func (a *Accumulator) Fold(h histogram.Histogram) (histogram.Histogram, error) {
	if len(h) != a.bins {
		return nil, errors.Errorf("histogram has %d bins, accumulator expects %d", len(h), a.bins)
	}

	entry := h.Clone()
	a.entries = append(a.entries, entry)
	floats.Add(a.sum, entry)

	if len(a.entries) > a.capacity {
		evicted := a.entries[0]
		floats.Sub(a.sum, evicted)
		a.entries[0] = nil
		a.entries = a.entries[1:]
	}

	return a.Average(), nil
}

// Average returns the elementwise mean of the retained histograms. It is all
// zero when the accumulator is empty.
func (a *Accumulator) Average() histogram.Histogram {
	avg := histogram.New(a.bins)
	if len(a.entries) == 0 {
		return avg
	}
	floats.ScaleTo(avg, 1/float64(len(a.entries)), a.sum)
	return avg
}

// Len returns the number of retained histograms.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Capacity returns the maximum number of retained histograms.
func (a *Accumulator) Capacity() int {
	return a.capacity
}

// Entries returns copies of the retained histograms, oldest first.
func (a *Accumulator) Entries() []histogram.Histogram {
	out := make([]histogram.Histogram, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Clone()
	}
	return out
}

// Reset drops every retained histogram.
func (a *Accumulator) Reset() {
	for i := range a.entries {
		a.entries[i] = nil
	}
	a.entries = a.entries[:0]
	for i := range a.sum {
		a.sum[i] = 0
	}
}

// DiagnosticLog records the raw histogram of every processed frame for
// offline inspection. It never influences the mask.
type DiagnosticLog struct {
	limit   int
	entries []histogram.Histogram
}

func newDiagnosticLog(limit int) *DiagnosticLog {
	return &DiagnosticLog{limit: limit}
}

// Append stores a copy of h, dropping the oldest entry when the log is full.
func (l *DiagnosticLog) Append(h histogram.Histogram) {
	if l.limit == 0 {
		return
	}
	l.entries = append(l.entries, h.Clone())
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries[0] = nil
		l.entries = l.entries[1:]
	}
}

// Entries returns copies of the logged histograms, oldest first.
func (l *DiagnosticLog) Entries() []histogram.Histogram {
	out := make([]histogram.Histogram, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of logged histograms.
func (l *DiagnosticLog) Len() int {
	return len(l.entries)
}

// Reset empties the log.
func (l *DiagnosticLog) Reset() {
	l.entries = nil
}
