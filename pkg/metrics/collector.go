package metrics

import (
	"time"

	"github.com/packhouse/coordinator/pkg/discovery"
	"github.com/packhouse/coordinator/pkg/types"
)

// Collector periodically re-scans every client's sessions and republishes
// the gauges on a ticker.
type Collector struct {
	scanner  *discovery.Scanner
	cache    *discovery.Cache
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector builds a Collector over an existing Scanner. If cache is
// non-nil, each tick's scan also refreshes the host-local scan cache; the
// share is still walked in full on every tick.
func NewCollector(scanner *discovery.Scanner, cache *discovery.Cache, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{scanner: scanner, cache: cache, interval: interval, stopCh: make(chan struct{})}
}

// Start begins collecting on a ticker, in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the background collection goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	var byClient map[string][]discovery.Record
	var err error
	if c.cache != nil {
		byClient, err = c.scanner.ScanAllCached(c.cache, time.Now())
	} else {
		byClient, err = c.scanner.ScanAll()
	}
	if err != nil {
		return
	}

	for clientID, records := range byClient {
		active := 0
		stale := 0
		for _, rec := range records {
			switch rec.State {
			case types.SlotActive:
				active++
			case types.SlotStale:
				stale++
			}
		}
		ActiveSessions.WithLabelValues(clientID).Set(float64(active))
		StaleLocksTotal.WithLabelValues(clientID).Set(float64(stale))
	}
}
