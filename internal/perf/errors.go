package perf

import "errors"

var (
	errThresholds = errors.New("perf: high-water threshold must exceed low-water threshold")
	errIntervals  = errors.New("perf: update intervals must be positive")
)
