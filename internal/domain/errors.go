package domain

import "errors"

var (
	// ErrNotFound signals a referenced entity is absent. Callers must treat
	// it as a distinct case, not a generic failure.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is the idempotency guard on review creation; callers
	// treat it as success without event emission.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition rejects a status change the lifecycle does not
	// allow. Surfaced to the operator, never a system error.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConfigurationMissing marks a failure operator intervention must
	// fix; redelivery cannot.
	ErrConfigurationMissing = errors.New("configuration missing")
)
