package report

import (
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/hamed0406/masterstatus/internal/domain"
)

const metricPrefix = "masterstatus_"

// Metrics builds the Prometheus families describing snap.
func Metrics(snap domain.Snapshot) []*dto.MetricFamily {
	up := &dto.MetricFamily{
		Name: proto.String(metricPrefix + "server_up"),
		Help: proto.String("Whether the server answered the protocol check (1) or not (0)."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, st := range snap.Statuses {
		for _, p := range snap.Protocols {
			v := 0.0
			if st.Up(p) {
				v = 1
			}
			up.Metric = append(up.Metric, &dto.Metric{
				Label: []*dto.LabelPair{
					label("id", st.Server.ID),
					label("country", st.Server.Country),
					label("address", st.Server.Address),
					label("protocol", string(p)),
				},
				Gauge: &dto.Gauge{Value: proto.Float64(v)},
			})
		}
	}

	sum := snap.Summary()
	byProto := &dto.MetricFamily{
		Name: proto.String(metricPrefix + "servers_up"),
		Help: proto.String("Number of servers up per protocol."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, p := range snap.Protocols {
		byProto.Metric = append(byProto.Metric, &dto.Metric{
			Label: []*dto.LabelPair{label("protocol", string(p))},
			Gauge: &dto.Gauge{Value: proto.Float64(float64(sum.UpBy[p]))},
		})
	}

	return []*dto.MetricFamily{
		up,
		byProto,
		gauge("servers", "Number of servers in the last scan.", float64(sum.Servers)),
		gauge("snapshot_timestamp_seconds", "Unix time the last scan completed.", float64(snap.GeneratedAt.Unix())),
	}
}

func renderProm(w io.Writer, snap domain.Snapshot) error {
	for _, mf := range Metrics(snap) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(metricPrefix + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}
