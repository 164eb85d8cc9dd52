package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// GatewayMetrics records credit gateway outcomes.
type GatewayMetrics struct {
	payments      *prometheus.CounterVec
	creditVolume  prometheus.Counter
	feeVolume     prometheus.Counter
	refunds       prometheus.Counter
	compensations *prometheus.CounterVec
	transfers     *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on reg. A nil reg returns a
// no-op recorder.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	m := &GatewayMetrics{
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_payments_total",
			Help: "Gateway payments by final status and payment method.",
		}, []string{"status", "method"}),
		creditVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_credit_volume_total",
			Help: "Credits moved through completed gateway payments.",
		}),
		feeVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_fee_volume_total",
			Help: "Gateway fees retained on completed payments.",
		}),
		refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_refunds_total",
			Help: "Refunded gateway payments.",
		}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_compensations_total",
			Help: "Buyer debits returned after a failed payment.",
		}, []string{"reason"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_transfers_total",
			Help: "Seller payouts by mode (immediate, scheduled, matured).",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.payments, m.creditVolume, m.feeVolume, m.refunds, m.compensations, m.transfers)
	return m
}

func (m *GatewayMetrics) Payment(status, method string, credit, fee decimal.Decimal) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(status), normalizeLabel(method)).Inc()
	if status == "completed" {
		m.creditVolume.Add(credit.InexactFloat64())
		m.feeVolume.Add(fee.InexactFloat64())
	}
}

func (m *GatewayMetrics) Refund() {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.Inc()
}

func (m *GatewayMetrics) Compensation(reason string) {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *GatewayMetrics) Transfer(mode string) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(mode)).Inc()
}
