package services

import "errors"

var (
	// ErrInvalidInput marks a request that failed field validation.
	ErrInvalidInput = errors.New("invalid input")

	ErrUserNotFound       = errors.New("user not found")
	ErrVIPNotFound        = errors.New("vip data not found")
	ErrMembershipNotFound = errors.New("vip membership not found")

	// ErrMembershipCodeTaken is returned by Signup for a code already
	// assigned to another member.
	ErrMembershipCodeTaken = errors.New("membership code already taken")

	// ErrObjectStorageDisabled is returned when no bucket is configured.
	ErrObjectStorageDisabled = errors.New("object storage is not configured")
)
