package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/subscription"
)

func TestMetricsWithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := NewPrometheusFactory(reg)
	m := NewMetricsExtension(factory)
	ctx := context.Background()

	_ = m.OnPackageComposed(ctx, &bundle.Package{TotalMonthly: 378})
	_ = m.OnViewsCharged(ctx, "m1", "sub_1", []string{"a", "b"})
	_ = m.OnViewsCharged(ctx, "m1", "sub_1", []string{"c"})
	_ = m.OnBalanceInsufficient(ctx, "sub_1", feature.Views, 4, 1)
	_ = m.OnExtrasGranted(ctx, "sub_1", subscription.Extra{Deltas: map[feature.Key]int64{feature.Views: 10, feature.Jobs: 2}})

	tests := []struct {
		name string
		c    Counter
		want float64
	}{
		{"composed", m.PackageComposed, 1},
		{"views", m.ViewsCharged, 3},
		{"insufficient", m.BalanceInsufficient, 1},
		{"extras units", m.ExtrasUnits, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ToFloat64(tt.c.(prometheus.Counter))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	f := NewPrometheusFactory(prometheus.NewRegistry())
	a := f.Counter("quota.views.charged")
	b := f.Counter("quota.views.charged")
	if a != b {
		t.Error("expected the same counter for the same name")
	}
	if got := promName("quota.views.per_charge"); got != "quota_views_per_charge" {
		t.Errorf("promName: got %q", got)
	}
}
