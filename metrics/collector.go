// Package metrics provides Prometheus metric collection for cellular module
// diagnostics.
package metrics

import (
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cellwatch/cellmon/cellinfo"
)

// Collector implements prometheus.Collector over the last-refreshed radio
// snapshots. Scrapes are cheap lock-guarded reads; the poller does the
// actual module queries.
type Collector struct {
	svc *cellinfo.Service

	// Signal metrics
	rssiDesc   *prometheus.Desc
	rsrpDesc   *prometheus.Desc
	rsrqDesc   *prometheus.Desc
	snrDesc    *prometheus.Desc
	rxQualDesc *prometheus.Desc

	// Cell metrics
	cellIDDesc *prometheus.Desc
	earfcnDesc *prometheus.Desc

	// Refresh metrics
	refreshAgeDesc *prometheus.Desc
}

// NewCollector creates a new Collector over the given service.
func NewCollector(svc *cellinfo.Service) *Collector {
	labels := []string{"device"}

	return &Collector{
		svc: svc,

		rssiDesc: prometheus.NewDesc(
			"cellmon_signal_rssi_dbm",
			"Received Signal Strength Indicator in dBm",
			labels,
			nil,
		),
		rsrpDesc: prometheus.NewDesc(
			"cellmon_signal_rsrp_dbm",
			"Reference Signal Received Power in dBm",
			labels,
			nil,
		),
		rsrqDesc: prometheus.NewDesc(
			"cellmon_signal_rsrq_db",
			"Reference Signal Received Quality in dB",
			labels,
			nil,
		),
		snrDesc: prometheus.NewDesc(
			"cellmon_signal_snr_db",
			"Signal to Noise Ratio in dB, derived from RSSI and RSRP",
			labels,
			nil,
		),
		rxQualDesc: prometheus.NewDesc(
			"cellmon_signal_rxqual",
			"RxQual index, 0-7",
			labels,
			nil,
		),

		cellIDDesc: prometheus.NewDesc(
			"cellmon_cell_id",
			"Identity of the serving cell",
			labels,
			nil,
		),
		earfcnDesc: prometheus.NewDesc(
			"cellmon_cell_earfcn",
			"Channel number of the serving cell",
			labels,
			nil,
		),

		refreshAgeDesc: prometheus.NewDesc(
			"cellmon_refresh_age_seconds",
			"Seconds since the last successful radio parameter refresh",
			labels,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rssiDesc
	ch <- c.rsrpDesc
	ch <- c.rsrqDesc
	ch <- c.snrDesc
	ch <- c.rxQualDesc
	ch <- c.cellIDDesc
	ch <- c.earfcnDesc
	ch <- c.refreshAgeDesc
}

// Collect implements prometheus.Collector. Fields still at their unknown
// sentinel are not exported rather than reported as fake readings.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, handle := range c.svc.Handles() {
		device := strconv.Itoa(handle)

		snap, err := c.svc.Snapshot(handle)
		if err != nil {
			continue
		}

		if snap.RssiDbm != cellinfo.RssiUnknown {
			ch <- prometheus.MustNewConstMetric(c.rssiDesc, prometheus.GaugeValue,
				float64(snap.RssiDbm), device)
		}
		if snap.RsrpDbm != cellinfo.RsrpUnknown {
			ch <- prometheus.MustNewConstMetric(c.rsrpDesc, prometheus.GaugeValue,
				float64(snap.RsrpDbm), device)
		}
		if snap.RsrqDb != cellinfo.RsrqUnknown {
			ch <- prometheus.MustNewConstMetric(c.rsrqDesc, prometheus.GaugeValue,
				float64(snap.RsrqDb), device)
		}
		if snap.RxQual != cellinfo.RxQualUnknown {
			ch <- prometheus.MustNewConstMetric(c.rxQualDesc, prometheus.GaugeValue,
				float64(snap.RxQual), device)
		}
		if snap.CellID != cellinfo.CellIDUnknown {
			ch <- prometheus.MustNewConstMetric(c.cellIDDesc, prometheus.GaugeValue,
				float64(snap.CellID), device)
		}
		if snap.Earfcn != cellinfo.EarfcnUnknown {
			ch <- prometheus.MustNewConstMetric(c.earfcnDesc, prometheus.GaugeValue,
				float64(snap.Earfcn), device)
		}

		if snr, err := c.svc.GetSnrDb(handle); err == nil && snr != math.MaxInt32 {
			ch <- prometheus.MustNewConstMetric(c.snrDesc, prometheus.GaugeValue,
				float64(snr), device)
		}

		if last, err := c.svc.LastRefresh(handle); err == nil && !last.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.refreshAgeDesc, prometheus.GaugeValue,
				time.Since(last).Seconds(), device)
		}
	}
}
