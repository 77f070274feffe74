package pryv

import "sync"

// ClockDeltaEstimate is the running estimate of server time minus client
// time, in seconds, and the number of samples it averages.
type ClockDeltaEstimate struct {
	Value  float64 `json:"value"  yaml:"value"`
	Weight int     `json:"weight" yaml:"weight"`
}

// DeltaEstimator keeps an incremental mean of observed clock offsets. Updates
// from concurrent requests are serialized so none is lost.
type DeltaEstimator struct {
	mutex    sync.RWMutex
	estimate ClockDeltaEstimate
}

// NewDeltaEstimator returns an estimator with no samples.
func NewDeltaEstimator() *DeltaEstimator {
	return &DeltaEstimator{}
}

// Update folds one sample, serverTime - requestLocalTimestamp, into the mean.
func (d *DeltaEstimator) Update(serverTime, requestLocalTimestamp float64) {
	sample := serverTime - requestLocalTimestamp

	d.mutex.Lock()
	defer d.mutex.Unlock()

	weight := float64(d.estimate.Weight)
	d.estimate.Value = (d.estimate.Value*weight + sample) / (weight + 1)
	d.estimate.Weight++
}

// Current returns the estimate in seconds, 0 before any sample.
func (d *DeltaEstimator) Current() float64 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return d.estimate.Value
}

// Snapshot returns a copy of the estimate and its weight.
func (d *DeltaEstimator) Snapshot() ClockDeltaEstimate {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return d.estimate
}
