package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "plain error", err: errors.New("boom"), expected: CodeUnknown},
		{name: "voucher invalid", err: NewVoucherInvalidError(nil), expected: CodeVoucherInvalid},
		{name: "payment", err: NewPaymentError("confirm", errors.New("declined")), expected: CodePayment},
		{name: "wrapped app error", err: fmt.Errorf("outer: %w", NewBundlesFetchError(nil)), expected: CodeBundlesFetch},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CodeOf(tc.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := NewPaymentError("start", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Cause())
	assert.Contains(t, err.Error(), "start")
}

func TestConstructorsUserMessages(t *testing.T) {
	assert.Equal(t, "Unsupported country code", NewUnsupportedRegionError("+999123").UserMessage)
	assert.Equal(t, "Failed to load bundles.", NewBundlesFetchError(nil).UserMessage)
	assert.Equal(t, "Could not resolve network for this number", NewNetworkResolutionError(nil).UserMessage)
	assert.Equal(t, "Payment failed. Please try again.", NewPaymentError("send", nil).UserMessage)
}

func TestRetryableFlags(t *testing.T) {
	assert.False(t, NewConfigurationError("x").Retryable)
	assert.False(t, NewVoucherInvalidError(nil).Retryable)
	assert.True(t, NewNetworkResolutionError(nil).Retryable)
	assert.True(t, NewBundlesFetchError(nil).Retryable)
	assert.True(t, NewPaymentError("confirm", nil).Retryable)
	assert.True(t, NewGatewayError("send_airtime", nil).Retryable)
}
