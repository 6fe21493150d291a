package exporter

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
)

/*
 *  Exposes the current account snapshot as gauges.  Collecting never talks
 *  to Blink; the values are as fresh as the last store refresh.
 */

var (
	upDesc = prometheus.NewDesc(
		"blink_up", "Whether an account snapshot has been fetched.", nil, nil,
	)
	generationDesc = prometheus.NewDesc(
		"blink_snapshot_generation", "Number of snapshots published since start.", nil, nil,
	)
	snapshotAgeDesc = prometheus.NewDesc(
		"blink_snapshot_age_seconds", "Time since the current snapshot was fetched.", nil, nil,
	)
	networkArmedDesc = prometheus.NewDesc(
		"blink_network_armed", "Whether the network is armed.", []string{"network", "name"}, nil,
	)
	syncModuleOnlineDesc = prometheus.NewDesc(
		"blink_sync_module_online", "Whether the sync module reports online.", []string{"network", "serial"}, nil,
	)
	cameraEnabledDesc = prometheus.NewDesc(
		"blink_camera_enabled", "Whether motion detection is enabled.", []string{"network", "camera", "name"}, nil,
	)
	cameraTemperatureDesc = prometheus.NewDesc(
		"blink_camera_temperature_celsius", "Camera temperature.", []string{"network", "camera", "name"}, nil,
	)
	cameraWifiDesc = prometheus.NewDesc(
		"blink_camera_wifi_signal", "Camera wifi signal in bars.", []string{"network", "camera", "name"}, nil,
	)
	cameraBatteryLowDesc = prometheus.NewDesc(
		"blink_camera_battery_low", "Whether the camera reports a low battery.", []string{"network", "camera", "name"}, nil,
	)
)

// SnapshotSource is the device store
type SnapshotSource interface {
	Snapshot() *blink.AccountSnapshot
}

type Collector struct {
	source SnapshotSource
	now    func() time.Time
}

func NewCollector(source SnapshotSource, now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{source: source, now: now}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- generationDesc
	ch <- snapshotAgeDesc
	ch <- networkArmedDesc
	ch <- syncModuleOnlineDesc
	ch <- cameraEnabledDesc
	ch <- cameraTemperatureDesc
	ch <- cameraWifiDesc
	ch <- cameraBatteryLowDesc
}

func gauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func id(i int64) string {
	return strconv.FormatInt(i, 10)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, gauge(snap.Generation > 0))
	ch <- prometheus.MustNewConstMetric(generationDesc, prometheus.GaugeValue, float64(snap.Generation))
	if snap.Generation == 0 {
		return
	}
	ch <- prometheus.MustNewConstMetric(snapshotAgeDesc, prometheus.GaugeValue, c.now().Sub(snap.FetchedAt).Seconds())

	for _, n := range snap.Networks {
		ch <- prometheus.MustNewConstMetric(networkArmedDesc, prometheus.GaugeValue, gauge(n.Armed), id(n.ID), n.Name)
		if sm := n.SyncModule; sm != nil {
			ch <- prometheus.MustNewConstMetric(syncModuleOnlineDesc, prometheus.GaugeValue,
				gauge(strings.EqualFold(sm.Status, "online")), id(n.ID), sm.Serial)
		}
	}

	for _, cam := range snap.Cameras {
		labels := []string{id(cam.NetworkID), id(cam.ID), cam.Name}
		ch <- prometheus.MustNewConstMetric(cameraEnabledDesc, prometheus.GaugeValue, gauge(cam.Enabled), labels...)
		ch <- prometheus.MustNewConstMetric(cameraTemperatureDesc, prometheus.GaugeValue,
			blink.FahrenheitToCelsius(cam.Signals.Temp), labels...)
		ch <- prometheus.MustNewConstMetric(cameraWifiDesc, prometheus.GaugeValue, float64(cam.Signals.Wifi), labels...)
		ch <- prometheus.MustNewConstMetric(cameraBatteryLowDesc, prometheus.GaugeValue,
			gauge(cam.Signals.Battery < 2), labels...)
	}
}
