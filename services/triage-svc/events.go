package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

var (
	exportPublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triage",
		Name:      "export_publish_seconds",
		Help:      "Time spent publishing call events to Kafka",
		Buckets:   prometheus.DefBuckets,
	})
	exportEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triage",
		Name:      "export_events_total",
		Help:      "Call events exported to Kafka, by result",
	}, []string{"result"})
)

// EventExporter mirrors call events onto a Kafka topic for downstream
// consumers that cannot hold a websocket open (archival, analytics
// pipelines). It is optional; the service runs without it.
type EventExporter struct {
	producer *kgo.Client
	topic    string
}

func NewEventExporter(brokers []string, topic, logLevel string) (*EventExporter, error) {
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.WithLogger(common.NewKgoSlogLogger(slog.Default().With("component", "kafka"), common.KgoLogLevelFromString(logLevel))),
		kgo.ProducerBatchMaxBytes(1000*1000),
		kgo.ProducerLinger(100*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return &EventExporter{producer: producer, topic: topic}, nil
}

// Publish produces one call event asynchronously; failures are logged and
// dropped, matching the broadcast path's at-most-once-effort contract.
func (e *EventExporter) Publish(callSid, event string, payload any) {
	if e == nil || e.producer == nil {
		return
	}

	envelope := eventEnvelope{
		Event:     event,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Warn("failed to encode export event", "event", event, "error", err)
		return
	}

	start := time.Now()
	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(callSid),
		Value: data,
	}
	e.producer.Produce(context.Background(), record, func(r *kgo.Record, produceErr error) {
		exportPublishDuration.Observe(time.Since(start).Seconds())
		if produceErr != nil {
			exportEventsTotal.WithLabelValues("error").Inc()
			slog.Warn("failed to export call event", "event", event, "call_sid", callSid, "error", produceErr)
			return
		}
		exportEventsTotal.WithLabelValues("ok").Inc()
	})
}

func (e *EventExporter) Close() {
	if e != nil && e.producer != nil {
		e.producer.Close()
	}
}

// StartHealthCheck keeps healthy in step with broker reachability, checking
// every 5 seconds and logging each transition.
func (e *EventExporter) StartHealthCheck(ctx context.Context, healthy *atomic.Bool) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		err := e.producer.Ping(pingCtx)
		if err != nil {
			if healthy.CompareAndSwap(true, false) {
				slog.Warn("kafka not reachable", "error", err, "brokers", e.brokers(pingCtx))
			}
		} else {
			if healthy.CompareAndSwap(false, true) {
				slog.Info("kafka connection established", "brokers", e.brokers(pingCtx))
			}
		}
	}

	check()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func (e *EventExporter) brokers(ctx context.Context) []string {
	req := kmsg.NewMetadataRequest()
	md, err := e.producer.RequestCachedMetadata(ctx, &req, 0)

	var brokerList []string
	if err == nil {
		for _, b := range md.Brokers {
			brokerList = append(brokerList, net.JoinHostPort(b.Host, strconv.Itoa(int(b.Port))))
		}
	}
	return brokerList
}
