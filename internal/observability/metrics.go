// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

// NewRegistry returns a registry carrying the Go runtime and process
// collectors. Components register their own metrics on it.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Metrics records authentication and admission events. It satisfies both
// auth.Recorder and ratelimit.Recorder.
type Metrics struct {
	IssuanceTotal       *prometheus.CounterVec
	AdmissionRejections *prometheus.CounterVec
	TokenValidations    *prometheus.CounterVec
}

var (
	_ auth.Recorder      = (*Metrics)(nil)
	_ ratelimit.Recorder = (*Metrics)(nil)
)

// NewMetrics creates and registers the service metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IssuanceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secureauth_issuance_total",
				Help: "Token issuance attempts by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),
		AdmissionRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secureauth_admission_rejections_total",
				Help: "Requests rejected by admission control, by the limiter that declined",
			},
			[]string{"limiter"},
		),
		TokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secureauth_token_validations_total",
				Help: "Presented credentials checked by an identity strategy",
			},
			[]string{"scheme", "result"},
		),
	}
	reg.MustRegister(m.IssuanceTotal, m.AdmissionRejections, m.TokenValidations)
	return m
}

// RecordIssuance implements auth.Recorder.
func (m *Metrics) RecordIssuance(transport string, outcome auth.Outcome) {
	m.IssuanceTotal.WithLabelValues(transport, outcome.String()).Inc()
}

// RecordTokenValidation implements auth.Recorder.
func (m *Metrics) RecordTokenValidation(scheme auth.Scheme, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.TokenValidations.WithLabelValues(string(scheme), result).Inc()
}

// RecordAdmissionRejection implements ratelimit.Recorder.
func (m *Metrics) RecordAdmissionRejection(limiter string) {
	m.AdmissionRejections.WithLabelValues(limiter).Inc()
}
