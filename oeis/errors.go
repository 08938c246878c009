package oeis

import "errors"

// Sentinel errors returned by Parse. These mark grammar violations that make
// an entry unusable; anything softer is reported as an Issue and parsing
// continues.
var (
	ErrNoDirectives      = errors.New("oeis: no directive lines found")
	ErrDirectiveOrder    = errors.New("oeis: unexpected directive order")
	ErrValueContinuation = errors.New("oeis: broken continuation in value directives")
	ErrBadInteger        = errors.New("oeis: malformed integer token")
	ErrSignedValues      = errors.New("oeis: signed values inconsistent with unsigned values")
	ErrBadOffset         = errors.New("oeis: unexpected number of offset values")
)
