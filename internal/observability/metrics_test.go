// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

func TestMetrics_RecordIssuance(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordIssuance(auth.TransportREST, auth.OutcomeIssued)
	m.RecordIssuance(auth.TransportREST, auth.OutcomeIssued)
	m.RecordIssuance(auth.TransportGRPC, auth.OutcomeRateLimited)

	assert.InDelta(t, 2, testutil.ToFloat64(m.IssuanceTotal.WithLabelValues("rest", auth.OutcomeIssued.String())), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IssuanceTotal.WithLabelValues("grpc", auth.OutcomeRateLimited.String())), 0)
}

func TestMetrics_RecordTokenValidation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTokenValidation(auth.SchemeBearer, true)
	m.RecordTokenValidation(auth.SchemeBearer, false)
	m.RecordTokenValidation(auth.SchemeCookie, false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenValidations.WithLabelValues("bearer", "valid")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenValidations.WithLabelValues("bearer", "invalid")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenValidations.WithLabelValues("cookie", "invalid")), 0)
}

func TestMetrics_RecordAdmissionRejection(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAdmissionRejection(ratelimit.LimiterFixedWindow)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AdmissionRejections.WithLabelValues("fixed_window")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.AdmissionRejections.WithLabelValues("token_bucket")), 0)
}

func TestMetrics_ExposedOnRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.RecordIssuance(auth.TransportBrowser, auth.OutcomeBadCredentials)

	n, err := testutil.GatherAndCount(reg, "secureauth_issuance_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
