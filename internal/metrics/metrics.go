// Package metrics exposes Prometheus counters for the ingestion path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts inbound POST /scale/upload requests.
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ariahub_uploads_total",
		Help: "Total scale upload requests received.",
	})

	// UploadParseFailures counts uploads that did not decode.
	UploadParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ariahub_upload_parse_failures_total",
		Help: "Scale uploads that failed frame decoding.",
	})

	// MeasurementsInserted counts measurement rows created.
	MeasurementsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ariahub_measurements_inserted_total",
		Help: "Measurement rows inserted.",
	})

	// MeasurementsDuplicate counts re-uploaded measurements that were
	// already stored with identical bytes.
	MeasurementsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ariahub_measurements_duplicate_total",
		Help: "Re-uploaded measurements deduplicated against existing rows.",
	})

	// MeasurementsConflict counts re-uploads whose bytes differed from the
	// stored row. The original row is kept.
	MeasurementsConflict = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ariahub_measurements_conflict_total",
		Help: "Re-uploaded measurements that conflicted with existing rows.",
	})

	// MeasurementsRejected counts measurements dropped by validation.
	MeasurementsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ariahub_measurements_rejected_total",
		Help: "Measurements dropped by validation.",
	})
)

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
