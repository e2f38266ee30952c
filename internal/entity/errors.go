package entity

import "errors"

// Domain errors
var (
	// Consultation errors
	ErrConsultationNotFound   = errors.New("consultation not found")
	ErrConsultationCompleted  = errors.New("consultation is already completed")
	ErrConsultationNotReady   = errors.New("consultation is not completed yet")
	ErrConsultationClosed     = errors.New("consultation is closed")
	ErrRequestInFlight        = errors.New("another request is in progress")
	ErrNoSession              = errors.New("backend session is not assigned yet")
	ErrInvalidStructuredInput = errors.New("invalid structured input")

	// Template errors
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidTemplate  = errors.New("invalid template")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidParameter = errors.New("invalid parameter")
)
