package metrics

import (
	"time"
)

// StatsProvider supplies asset counts for periodic export.
type StatsProvider interface {
	AssetCounts() map[string]int
}

// Collector periodically exports store-level asset counts.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a collector that polls the provider at the given
// interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the collection loop in a background goroutine.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop terminates the collection loop.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}
	for status, count := range c.provider.AssetCounts() {
		AssetsByStatus.WithLabelValues(status).Set(float64(count))
	}
}
