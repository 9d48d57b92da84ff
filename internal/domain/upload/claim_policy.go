// Package upload holds pure domain policies for the upload pipeline.
package upload

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultClaimTTL indicates the configured default claim TTL is not positive.
var ErrInvalidDefaultClaimTTL = errors.New("default claim ttl must be positive")

// ClaimTTLSource identifies how a claim TTL was resolved.
type ClaimTTLSource string

const (
	// ClaimTTLSourceExplicit indicates the caller supplied a positive duration.
	ClaimTTLSourceExplicit ClaimTTLSource = "explicit"
	// ClaimTTLSourceDefault indicates the default duration was used.
	ClaimTTLSourceDefault ClaimTTLSource = "default"
	// ClaimTTLSourceClamped indicates the requested duration was clamped to the minimum supported value.
	ClaimTTLSourceClamped ClaimTTLSource = "clamped"
)

// ClaimPolicy normalises claim TTLs. The TTL stamped on a claim is the
// staleness threshold: a claim past its expiry is eligible for requeue.
type ClaimPolicy struct {
	defaultTTL time.Duration
}

// NewClaimPolicy constructs a ClaimPolicy with the provided default TTL.
func NewClaimPolicy(defaultTTL time.Duration) (*ClaimPolicy, error) {
	if defaultTTL <= 0 {
		return nil, ErrInvalidDefaultClaimTTL
	}
	return &ClaimPolicy{
		defaultTTL: defaultTTL,
	}, nil
}

// Default returns the configured default claim TTL.
func (p *ClaimPolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultTTL
}

// ClaimDecision captures the outcome of resolving a claim TTL request.
type ClaimDecision struct {
	Seconds   int
	Source    ClaimTTLSource
	Requested time.Duration
}

// UsedDefault reports whether the policy fell back to the default TTL.
func (d ClaimDecision) UsedDefault() bool {
	return d.Source == ClaimTTLSourceDefault
}

// Clamped reports whether the requested value was clamped to the minimum supported duration.
func (d ClaimDecision) Clamped() bool {
	return d.Source == ClaimTTLSourceClamped
}

// Resolve normalises the requested duration to a whole number of seconds.
func (p *ClaimPolicy) Resolve(request time.Duration) ClaimDecision {
	if p == nil {
		return ClaimDecision{Seconds: 0, Source: ClaimTTLSourceDefault, Requested: request}
	}

	decision := ClaimDecision{Requested: request}

	switch {
	case request > 0:
		seconds, clamped := durationToSeconds(request)
		decision.Seconds = seconds
		if clamped {
			decision.Source = ClaimTTLSourceClamped
		} else {
			decision.Source = ClaimTTLSourceExplicit
		}
		return decision
	case request == 0:
		seconds, _ := durationToSeconds(p.defaultTTL)
		decision.Seconds = seconds
		decision.Source = ClaimTTLSourceDefault
		return decision
	default:
		decision.Seconds = 1
		decision.Source = ClaimTTLSourceClamped
		return decision
	}
}

func durationToSeconds(d time.Duration) (int, bool) {
	seconds := int64(d / time.Second)
	clamped := false

	if seconds <= 0 {
		seconds = 1
		clamped = true
	}

	maxSeconds := int64(math.MaxInt)
	if seconds > maxSeconds {
		seconds = maxSeconds
		clamped = true
	}

	return int(seconds), clamped
}
