// Package rating implements the shipping rate computation engine: a pure,
// stateless pipeline from a shipment descriptor and a rate-configuration
// snapshot to an itemized quote. It performs no I/O; collaborators load the
// snapshot and persist commit effects.
package rating

import "errors"

var (
	// ErrNoActiveRateTable means no active, effective-dated table exists for
	// the requested carrier/zone/service triple. Configuration gap, not
	// retryable.
	ErrNoActiveRateTable = errors.New("no active rate table")
	// ErrAmbiguousRateTable means two tables share the maximum version for
	// one triple. The resolver refuses to pick arbitrarily.
	ErrAmbiguousRateTable = errors.New("ambiguous rate table")
	// ErrMissingDimensions means the table's pricing model needs parcel
	// dimensions (or a volumetric divisor) that were not supplied.
	ErrMissingDimensions = errors.New("missing dimensions")
	// ErrNoMatchingTier means the billable weight fell outside every rule
	// bracket of the resolved table.
	ErrNoMatchingTier = errors.New("no matching tier")
	// ErrServiceNotAvailable means a requested add-on service is not sold in
	// the shipment's zone.
	ErrServiceNotAvailable = errors.New("service not available in zone")
	// ErrServiceTierNotFound means a tier_based service had no bracket for
	// the shipment and no catalog default to fall back to.
	ErrServiceTierNotFound = errors.New("service tier not found")
	// ErrUnknownService means a requested service code does not exist in the
	// carrier's catalog.
	ErrUnknownService = errors.New("unknown service code")
	// ErrExceedsCarrierLimits means the parcel's actual weight or dimensions
	// exceed the carrier's operational maximums.
	ErrExceedsCarrierLimits = errors.New("exceeds carrier limits")
)
