// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package bridge

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pinboard/internal/config"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
)

// breakerStates is the gauge value exported for each breaker state.
var breakerStates = map[gobreaker.State]float64{
	gobreaker.StateClosed:   0,
	gobreaker.StateHalfOpen: 1,
	gobreaker.StateOpen:     2,
}

// newBreaker guards the remote pin API. It trips once MinRequests calls in
// the current interval fail at FailureRatio or worse. A RemoteError below
// 500 is the remote refusing a request (bad token, unknown pin) and counts
// as a success.
func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStates[gobreaker.StateClosed])

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
	}

	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 || counts.Requests < cfg.MinRequests {
			return false
		}
		ratio := float64(counts.TotalFailures) / float64(counts.Requests)
		if ratio < cfg.FailureRatio {
			return false
		}
		logging.Warn().
			Str("breaker", name).
			Uint32("requests", counts.Requests).
			Uint32("failures", counts.TotalFailures).
			Msg("Remote pin API failing, opening circuit")
		return true
	}

	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logging.Info().
			Str("breaker", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("Circuit breaker state changed")
		metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStates[to])
		metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	}

	st.IsSuccessful = func(err error) bool {
		var re *RemoteError
		return err == nil || (errors.As(err, &re) && re.Status < 500)
	}

	return gobreaker.NewCircuitBreaker[[]byte](st)
}
