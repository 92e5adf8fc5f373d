package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTransition(t *testing.T) {
	m := Escrow()
	before := testutil.ToFloat64(m.transitions.WithLabelValues("escrow", "fundJob", "InvalidAmount"))
	m.ObserveTransition("escrow", "fundJob", "InvalidAmount", 5*time.Millisecond)
	after := testutil.ToFloat64(m.transitions.WithLabelValues("escrow", "fundJob", "InvalidAmount"))
	if after-before != 1 {
		t.Fatalf("expected counter to advance by 1, got %v", after-before)
	}
}

func TestGauges(t *testing.T) {
	m := Escrow()
	m.SetHeldValue(150)
	m.SetOpenDisputes(2)
	if got := testutil.ToFloat64(m.heldValue); got != 150 {
		t.Fatalf("unexpected held value %v", got)
	}
	if got := testutil.ToFloat64(m.openDisputes); got != 2 {
		t.Fatalf("unexpected open disputes %v", got)
	}
	var nilMetrics *EscrowMetrics
	nilMetrics.SetOpenDisputes(1)
}
