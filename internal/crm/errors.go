package crm

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("crm: not found")

	// ErrMissingCompany is returned when a company scope is absent.
	ErrMissingCompany = errors.New("crm: company id is required")

	// ErrMissingPhone is returned when a lead lookup has no usable phone.
	ErrMissingPhone = errors.New("crm: phone is required")
)
