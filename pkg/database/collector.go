package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector exports pgxpool statistics at scrape time
type poolCollector struct {
	db *PostgresDB

	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	waits    *prometheus.Desc
}

// Collector returns a prometheus collector for the pool's connection counts
func (db *PostgresDB) Collector(namespace string) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, nil)
	}
	return &poolCollector{
		db:       db,
		total:    desc("connections", "Open connections in the pool"),
		idle:     desc("idle_connections", "Idle connections in the pool"),
		acquired: desc("acquired_connections", "Connections currently in use"),
		waits:    desc("empty_acquire_total", "Acquires that waited for a connection"),
	}
}

// Describe implements prometheus.Collector
func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.waits
}

// Collect implements prometheus.Collector
func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.db.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(stat.EmptyAcquireCount()))
}
