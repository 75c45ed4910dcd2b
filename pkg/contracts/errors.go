package contracts

import "errors"

// Error taxonomy of the kernel. Every failure surfaced to an external
// caller wraps exactly one of these sentinels; eligibility failures and
// safety violations are NOT errors, they are structured negative outcomes.
var (
	// ErrConfig marks a malformed or missing playbook, profile, or control
	// snapshot. Fatal, never retried.
	ErrConfig = errors.New("config error")

	// ErrValidation marks a malformed request or an evidence record missing
	// a required field. Fatal, fail-closed.
	ErrValidation = errors.New("validation error")

	// ErrIntegrity marks a replay hash mismatch. Fatal, reported, never
	// auto-repaired.
	ErrIntegrity = errors.New("integrity error")

	// ErrUnsupported marks an observation type or action id outside the
	// supported catalog. The carrying error names the supported
	// alternatives.
	ErrUnsupported = errors.New("unsupported")
)
