package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for each authentication pass.
const (
	outcomeAnonymous        = "anonymous"
	outcomeMalformed        = "malformed"
	outcomeUnknownPrincipal = "unknown_principal"
	outcomeInvalid          = "invalid"
	outcomeExpired          = "expired"
	outcomeAuthenticated    = "authenticated"
	outcomeDirectoryFailure = "directory_error"
)

// Refresh-token lifecycle events.
const (
	refreshCreated = "created"
	refreshExpired = "expired"
	refreshRotated = "rotated"
	refreshRevoked = "revoked"
)

var (
	authenticationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_authentications_total",
			Help: "Total number of request authentication passes by outcome",
		},
		[]string{"outcome"},
	)

	refreshTokenEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_token_events_total",
			Help: "Total number of refresh token lifecycle events",
		},
		[]string{"event"},
	)
)
