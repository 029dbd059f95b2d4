package metrics

import (
	"os"
	"time"

	"screencast/internal/logging"
)

// StatsProvider reports catalog totals.
type StatsProvider interface {
	GetStats() (Stats, error)
}

// Stats holds the current catalog totals.
type Stats struct {
	TotalVideos   int
	TotalComments int
	TotalViews    int
	TotalBytes    int64
}

// Collector periodically refreshes the catalog gauges and, when dbPath is
// set, the SQLite file sizes.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a collector. dbPath may be empty.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop ends the collection loop.
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
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}
	stats, err := c.statsProvider.GetStats()
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogVideos.Set(float64(stats.TotalVideos))
	CatalogComments.Set(float64(stats.TotalComments))
	StorageObjectBytes.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: videos=%d, comments=%d, views=%d, bytes=%d",
		stats.TotalVideos, stats.TotalComments, stats.TotalViews, stats.TotalBytes)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		info, err := os.Stat(c.dbPath + suffix)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
