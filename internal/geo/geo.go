// Package geo resolves free-text addresses to coordinates. Resolution is
// tiered: each Locator is tried in order and the first valid pair wins.
package geo

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jmylchreest/propharvest/internal/logger"
)

// Sentinel marks a coordinate that could not be determined.
const Sentinel = "N/A"

var (
	// ErrNoMatch indicates a tier ran but produced no coordinates.
	ErrNoMatch = errors.New("no coordinates found")
	// ErrEmptyAddress indicates there was nothing to look up.
	ErrEmptyAddress = errors.New("empty address")
)

var decimalRE = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Pair is a latitude/longitude in decimal degrees, kept as the text the
// source returned.
type Pair struct {
	Latitude  string `json:"latitude" yaml:"latitude"`
	Longitude string `json:"longitude" yaml:"longitude"`
}

// SentinelPair returns the pair used when no tier succeeds.
func SentinelPair() Pair {
	return Pair{Latitude: Sentinel, Longitude: Sentinel}
}

// IsSentinel reports whether p is the not-available pair.
func (p Pair) IsSentinel() bool {
	return p.Latitude == Sentinel && p.Longitude == Sentinel
}

// Valid reports whether both values are signed decimals.
func (p Pair) Valid() bool {
	return decimalRE.MatchString(p.Latitude) && decimalRE.MatchString(p.Longitude)
}

// Locator is one resolution tier.
type Locator interface {
	// Locate returns coordinates for address or an error when it has none.
	Locate(ctx context.Context, address string) (Pair, error)
	// Name identifies the tier in diagnostics.
	Name() string
}

// Resolver tries its tiers in order. It never fails: every error path ends
// in the sentinel pair.
type Resolver struct {
	tiers []Locator
}

// NewResolver returns a Resolver over tiers, most accurate first.
func NewResolver(tiers ...Locator) *Resolver {
	return &Resolver{tiers: tiers}
}

// Resolve returns coordinates for address, or the sentinel pair.
func (r *Resolver) Resolve(ctx context.Context, address string) Pair {
	address = strings.TrimSpace(address)
	if address == "" || address == Sentinel {
		logger.Debug("skipping geolocation", "reason", ErrEmptyAddress)
		return SentinelPair()
	}

	for i, tier := range r.tiers {
		p, err := tier.Locate(ctx, address)
		if err == nil && !p.Valid() {
			err = ErrNoMatch
		}
		if err == nil {
			logger.Info("coordinates resolved",
				"source", tier.Name(),
				"latitude", p.Latitude,
				"longitude", p.Longitude)
			return p
		}

		if i+1 < len(r.tiers) {
			logger.Info("geolocation falling back",
				"from", tier.Name(),
				"to", r.tiers[i+1].Name(),
				"address", address,
				"error", err)
			continue
		}
		logger.Warn("geolocation failed",
			"source", tier.Name(),
			"address", address,
			"error", err)
	}
	return SentinelPair()
}
