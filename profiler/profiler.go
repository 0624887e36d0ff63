// Package profiler collects per-stage timings of the segmentation pipeline.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-pitchseg/segmentation"
)

// DefaultMaxSamples is the number of durations retained per stage.
const DefaultMaxSamples = 600

// StageStats summarizes the retained durations of one stage.
type StageStats struct {
	Stage  segmentation.Stage `json:"stage"`
	Count  int64              `json:"count"`
	Mean   time.Duration      `json:"mean"`
	StdDev time.Duration      `json:"std_dev"`
	P95    time.Duration      `json:"p95"`
	Min    time.Duration      `json:"min"`
	Max    time.Duration      `json:"max"`
}

// timeTracker tracks operation timing statistics over a bounded window.
type timeTracker struct {
	durations []time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// StageProfiler implements segmentation.StageObserver. It is safe for
// concurrent use, so one profiler can observe every stream.
type StageProfiler struct {
	mu         sync.Mutex
	maxSamples int
	stages     map[segmentation.Stage]*timeTracker
}

// NewStageProfiler creates a profiler that keeps the last maxSamples
// durations of every stage. A non-positive maxSamples selects
// DefaultMaxSamples.
func NewStageProfiler(maxSamples int) *StageProfiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &StageProfiler{
		maxSamples: maxSamples,
		stages:     make(map[segmentation.Stage]*timeTracker),
	}
}

// ObserveStage records the duration of one stage run.
func (p *StageProfiler) ObserveStage(stage segmentation.Stage, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.stages[stage]
	if !exists {
		tracker = &timeTracker{
			durations: make([]time.Duration, 0, p.maxSamples),
			minTime:   d,
			maxTime:   d,
		}
		p.stages[stage] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	if len(tracker.durations) > p.maxSamples {
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// Snapshot returns the statistics of every observed stage, sorted by stage
// name. Min, Max and Count cover every observation; Mean, StdDev and P95
// cover the retained window.
func (p *StageProfiler) Snapshot() []StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StageStats, 0, len(p.stages))
	for stage, tracker := range p.stages {
		samples := make([]float64, len(tracker.durations))
		for i, d := range tracker.durations {
			samples[i] = float64(d)
		}
		sort.Float64s(samples)

		mean, std := stat.MeanStdDev(samples, nil)
		if len(samples) < 2 {
			std = 0
		}
		out = append(out, StageStats{
			Stage:  stage,
			Count:  tracker.count,
			Mean:   time.Duration(mean),
			StdDev: time.Duration(std),
			P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, samples, nil)),
			Min:    tracker.minTime,
			Max:    tracker.maxTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// Report logs one info event per observed stage.
func (p *StageProfiler) Report(log zerolog.Logger) {
	for _, s := range p.Snapshot() {
		log.Info().
			Str("stage", string(s.Stage)).
			Int64("count", s.Count).
			Dur("mean", s.Mean).
			Dur("std_dev", s.StdDev).
			Dur("p95", s.P95).
			Dur("min", s.Min).
			Dur("max", s.Max).
			Msg("stage timings")
	}
}

// Reset drops every recorded duration.
func (p *StageProfiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = make(map[segmentation.Stage]*timeTracker)
}
