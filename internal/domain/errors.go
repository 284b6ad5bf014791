package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the ERP keeps answering 429 after the
	// retry budget is spent.
	ErrRateLimited = errors.New("rate limited by ERP")

	// ErrAuthFailed is returned when the ERP rejects the configured
	// credentials.
	ErrAuthFailed = errors.New("ERP authentication failed")

	// ErrNoData is returned when an operation requires data that has not
	// been synced yet.
	ErrNoData = errors.New("no data available")

	// ErrInvalidMonths is returned for a dashboard window outside the
	// supported sizes.
	ErrInvalidMonths = errors.New("months must be 3, 6 or 12")

	// ErrNegativeQuantity is returned when an order line carries a negative
	// quantity.
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
)
