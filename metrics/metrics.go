// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// VoteMetrics tracks vote casting outcomes. Metrics register with the given
// registry inside the constructor; pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
type VoteMetrics struct {
	VotesCast      *prometheus.CounterVec
	VotesRejected  *prometheus.CounterVec
	CastDuration   prometheus.Histogram
	ReferralCredit prometheus.Counter
}

func NewVoteMetrics(reg prometheus.Registerer, namespace string) *VoteMetrics {
	factory := promauto.With(reg)
	return &VoteMetrics{
		VotesCast: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_cast_total",
				Help:      "Total number of votes recorded",
			},
			[]string{"poll_id"},
		),
		VotesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_rejected_total",
				Help:      "Total number of vote attempts rejected",
			},
			[]string{"reason"},
		),
		CastDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vote_cast_duration_seconds",
				Help:      "Histogram of end-to-end vote casting times",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ReferralCredit: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "referral_credits_total",
				Help:      "Total number of referral bonuses credited",
			},
		),
	}
}
