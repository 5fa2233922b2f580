package notif

import (
	"log"

	"gochat/internal/common"
	"gochat/internal/metrics"
)

type MetricsObserver struct {
	metrics *metrics.Metrics
}

func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}

func (o *MetricsObserver) Update(event common.DeliveryEvent) error {
	o.metrics.Deliveries.WithLabelValues(string(event.Outcome)).Inc()
	return nil
}

// LogObserver reports pushes that reached an online user but failed.
type LogObserver struct{}

func NewLogObserver() *LogObserver {
	return &LogObserver{}
}

func (o *LogObserver) Name() string {
	return "log_observer"
}

func (o *LogObserver) Update(event common.DeliveryEvent) error {
	if event.Outcome == common.OutcomeFailed {
		log.Printf("Live push to %s dropped: %v", event.RecipientID, event.Err)
	}
	return nil
}
