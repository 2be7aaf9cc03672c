package types

// ArcadeError is the typed error carried through the payment pipeline.
// Code identifies the failure category, Message is safe to show to users.
type ArcadeError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ArcadeError) Error() string {
	return e.Message
}

// Error codes. Retryability is decided per code by the orchestrator's
// classifier, not here.
const (
	ErrConfig            = "CONFIG_ERROR"
	ErrWalletUnavailable = "WALLET_UNAVAILABLE"
	ErrAddressResolution = "ADDRESS_RESOLUTION_FAILED"
	ErrPriceFetch        = "PRICE_FETCH_FAILED"
	ErrApproval          = "APPROVAL_FAILED"
	ErrPaymentRejected   = "PAYMENT_REJECTED"
	ErrPaymentReverted   = "PAYMENT_REVERTED"
	ErrWrongChain        = "WRONG_CHAIN"
	ErrVerification      = "VERIFICATION_FAILED"
	ErrRecordNotFound    = "RECORD_NOT_FOUND"
	ErrNetwork           = "NETWORK_ERROR"
	ErrTimeout           = "TIMEOUT"
)

// NewArcadeError builds an ArcadeError with a code and message.
func NewArcadeError(code, message string) *ArcadeError {
	return &ArcadeError{Code: code, Message: message}
}

// CodeOf extracts the error code, or empty when err is not an ArcadeError.
func CodeOf(err error) string {
	if ae, ok := err.(*ArcadeError); ok {
		return ae.Code
	}
	return ""
}
