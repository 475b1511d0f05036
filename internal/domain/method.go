package domain

// Method selects which payment path establishes the credit.
type Method string

const (
	// MethodVoucher redeems a pre-purchased code.
	MethodVoucher Method = "voucher"
	// MethodCard runs the two-phase card payment flow.
	MethodCard Method = "card"
)

// IsValid reports whether m is a recognized payment method.
func (m Method) IsValid() bool {
	return m == MethodVoucher || m == MethodCard
}
