package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/spinwheel/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ExporterRemoteWrite = "prometheus_remote_write"
	ExporterPushgateway = "prometheus_pushgateway"

	defaultPushTimeout = 5 * time.Second
)

// Pusher ships a snapshot of gathered metrics to an external collector.
type Pusher interface {
	Push(ctx context.Context, gatherer prometheus.Gatherer) error
}

// NewPusher builds a pusher from config. A missing or invalid setup disables
// pushing and returns nil.
func NewPusher(cfg config.Config, log *zap.Logger) Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	pc := cfg.MetricsPush
	if pc.Exporter == "" {
		return nil
	}
	if pc.Endpoint == "" {
		log.Warn("metrics push disabled", zap.Error(errors.New("METRICS_PUSH_ENDPOINT is required")))
		return nil
	}

	switch pc.Exporter {
	case ExporterRemoteWrite:
		if _, err := url.ParseRequestURI(pc.Endpoint); err != nil {
			log.Warn("metrics push disabled", zap.Error(fmt.Errorf("invalid METRICS_PUSH_ENDPOINT: %w", err)))
			return nil
		}
		return NewRemoteWritePusher(pc.Endpoint, pc.AuthToken)
	case ExporterPushgateway:
		// Grouping keys must not collide with collector labels (env, event).
		return NewPushgatewayPusher(pc.Endpoint, cfg.AppName, map[string]string{
			"instance": strings.TrimSpace(cfg.EventSlug),
		})
	default:
		log.Warn("metrics push disabled", zap.String("exporter", pc.Exporter))
		return nil
	}
}

// RemoteWritePusher sends counters and gauges to a Prometheus remote_write endpoint.
type RemoteWritePusher struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

func NewRemoteWritePusher(endpoint, authToken string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:   endpoint,
		authToken:  strings.TrimSpace(authToken),
		httpClient: &http.Client{Timeout: defaultPushTimeout},
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}

	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	series := buildRemoteWriteSeries(families, time.Now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	req := &prompb.WriteRequest{Timeseries: series}
	payload, err := req.Marshal()
	if err != nil {
		return err
	}

	compressed := snappy.Encode(nil, payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(compressed))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

// PushgatewayPusher sends the gathered families to a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}
	if strings.TrimSpace(p.endpoint) == "" {
		return errors.New("pushgateway endpoint is required")
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer)
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}

// RunPusher pushes the default registry on an interval while the app runs,
// with a final push on shutdown.
func RunPusher(lc fx.Lifecycle, cfg config.Config, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	interval := time.Duration(cfg.MetricsPush.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log = log.Named("metrics.push")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if err := pusher.Push(ctx, prometheus.DefaultGatherer); err != nil {
							log.Warn("periodic metrics push failed", zap.Error(err))
						}
					case <-ctx.Done():
						return
					}
				}
			}()
			log.Info("metrics push started", zap.Duration("interval", interval))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			<-done
			if err := pusher.Push(stopCtx, prometheus.DefaultGatherer); err != nil {
				log.Warn("final metrics push failed", zap.Error(err))
			}
			return nil
		},
	})
}

func buildRemoteWriteSeries(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	series := make([]prompb.TimeSeries, 0, len(families))
	for _, family := range families {
		switch family.GetType() {
		case dto.MetricType_COUNTER, dto.MetricType_GAUGE:
		default:
			continue
		}
		for _, metric := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), metric)
			if !ok {
				continue
			}
			labels := make([]prompb.Label, 0, len(metric.GetLabel())+1)
			labels = append(labels, prompb.Label{Name: "__name__", Value: family.GetName()})
			for _, label := range metric.GetLabel() {
				labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
			}
			sort.Slice(labels, func(i, j int) bool {
				return labels[i].Name < labels[j].Name
			})

			series = append(series, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
			})
		}
	}
	return series
}

func sampleValue(metricType dto.MetricType, metric *dto.Metric) (float64, bool) {
	if metric == nil {
		return 0, false
	}
	switch metricType {
	case dto.MetricType_COUNTER:
		if metric.GetCounter() == nil {
			return 0, false
		}
		return metric.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		if metric.GetGauge() == nil {
			return 0, false
		}
		return metric.GetGauge().GetValue(), true
	default:
		return 0, false
	}
}
