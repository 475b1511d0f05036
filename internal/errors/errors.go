package errors

import (
	stderrors "errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes surfaced to the host page through the error event.
const (
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnsupportedRegion = "UNSUPPORTED_REGION"
	CodeVoucherInvalid    = "VOUCHER_INVALID"
	CodeNetworkResolution = "NETWORK_RESOLUTION_FAILED"
	CodeBundlesFetch      = "BUNDLES_FETCH_FAILED"
	CodePayment           = "PAYMENT_FAILED"
	CodeUnknown           = "UNKNOWN_ERROR"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewConfigurationError(msg string) *AppError {
	return &AppError{
		Code:        CodeConfiguration,
		Message:     msg,
		UserMessage: "The widget is not configured correctly.",
		Severity:    SeverityCritical,
		Retryable:   false,
		cause:       nil,
	}
}

func NewValidationError(field, msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     fmt.Sprintf("validation failed for %s: %s", field, msg),
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewUnsupportedRegionError(phone string) *AppError {
	return &AppError{
		Code:        CodeUnsupportedRegion,
		Message:     fmt.Sprintf("no configured country matches %s", phone),
		UserMessage: "Unsupported country code",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewVoucherInvalidError(cause error) *AppError {
	return &AppError{
		Code:        CodeVoucherInvalid,
		Message:     "voucher not recognized",
		UserMessage: "Voucher not recognized",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       cause,
	}
}

func NewNetworkResolutionError(cause error) *AppError {
	return &AppError{
		Code:        CodeNetworkResolution,
		Message:     "could not resolve network",
		UserMessage: "Could not resolve network for this number",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewBundlesFetchError(cause error) *AppError {
	return &AppError{
		Code:        CodeBundlesFetch,
		Message:     "failed to load bundles",
		UserMessage: "Failed to load bundles.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewPaymentError(stage string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodePayment,
		Message:     fmt.Sprintf("payment failed during %s: %s", stage, underlyingMsg),
		UserMessage: "Payment failed. Please try again.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewGatewayError(operation string, cause error) *AppError {
	return &AppError{
		Code:        CodeUnknown,
		Message:     fmt.Sprintf("gateway call %s failed", operation),
		UserMessage: "An unknown error occurred.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// CodeOf extracts the widget error code from err, falling back to CodeUnknown.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr != nil && appErr.Code != "" {
		return appErr.Code
	}

	return CodeUnknown
}
