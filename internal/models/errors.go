package models

import "errors"

// Failure kinds surfaced by the pipeline. Callers match them with errors.Is;
// the concrete cause is wrapped alongside.
var (
	// ErrValidation marks malformed or missing participant fields.
	ErrValidation = errors.New("validation error")
	// ErrFetch marks a background or logo asset that could not be retrieved or decoded.
	ErrFetch = errors.New("fetch error")
	// ErrComposition marks a drawing failure the compositor could not recover from.
	ErrComposition = errors.New("composition error")
	// ErrDelivery marks an upload or acceptance post that kept failing after retries.
	ErrDelivery = errors.New("delivery error")
	// ErrBatchInput marks an empty or undecodable batch envelope.
	ErrBatchInput = errors.New("batch input error")
	// ErrNotification marks an outcome batch that could not be sent after retries.
	ErrNotification = errors.New("outcome notification error")
	// ErrInFlight is returned when another worker currently owns a certificate key.
	ErrInFlight = errors.New("certificate delivery already in flight")
)
