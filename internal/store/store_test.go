package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Clark-Hu/movie-reviews/internal/testdb"
)

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(context.Background(), "://nope", Options{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	s.Close()
	if s.Stats() != nil {
		t.Fatalf("nil store has stats")
	}
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Fatalf("nil store reported healthy")
	}
}

func TestStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded postgres skipped in -short mode")
	}
	db := testdb.Start(t, "store_test")

	st, err := New(context.Background(), db.DSN, Options{
		MaxConns:               4,
		MinConns:               1,
		ConnTimeout:            5 * time.Second,
		StatementCacheCapacity: 32,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()

	if err := st.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if st.Stats().MaxConns() != 4 {
		t.Fatalf("MaxConns = %d, want 4", st.Stats().MaxConns())
	}

	reg := prometheus.NewRegistry()
	st.RegisterMetrics(reg)
	expected := `
# HELP movie_reviews_db_pool_acquired_conns Connections checked out of the pool
# TYPE movie_reviews_db_pool_acquired_conns gauge
movie_reviews_db_pool_acquired_conns 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "movie_reviews_db_pool_acquired_conns"); err != nil {
		t.Fatalf("pool metrics: %v", err)
	}
}
