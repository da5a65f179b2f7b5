package postgres

import (
	"database/sql"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/vietddude/partners/internal/metrics"
)

func poolUsage(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.DBConnectionPoolUsage.Write(&m); err != nil {
		t.Fatalf("read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecordPoolUsage(t *testing.T) {
	recordPoolUsage(sql.DBStats{MaxOpenConnections: 10, OpenConnections: 4})
	if got := poolUsage(t); got != 40 {
		t.Errorf("pool usage = %v, want 40", got)
	}

	// Unlimited pools leave the last value in place.
	recordPoolUsage(sql.DBStats{OpenConnections: 7})
	if got := poolUsage(t); got != 40 {
		t.Errorf("pool usage = %v, want 40", got)
	}
}
