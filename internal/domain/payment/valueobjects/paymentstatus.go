package valueobjects

import "fmt"

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusWaitingForCapture PaymentStatus = "waiting_for_capture"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
)

// Provider-side status strings.
const (
	ProviderStatusPending           = "pending"
	ProviderStatusWaitingForCapture = "waiting_for_capture"
	ProviderStatusSucceeded         = "succeeded"
	ProviderStatusCanceled          = "canceled"
)

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	s := PaymentStatus(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", value)
	}
	return s, nil
}

// FromProviderStatus maps a provider status. Unknown values map to failed.
func FromProviderStatus(providerStatus string) PaymentStatus {
	switch providerStatus {
	case ProviderStatusPending:
		return PaymentStatusPending
	case ProviderStatusWaitingForCapture:
		return PaymentStatusWaitingForCapture
	case ProviderStatusSucceeded:
		return PaymentStatusSucceeded
	case ProviderStatusCanceled:
		return PaymentStatusCancelled
	default:
		return PaymentStatusFailed
	}
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusWaitingForCapture, PaymentStatusSucceeded,
		PaymentStatusFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) IsSucceeded() bool {
	return s == PaymentStatusSucceeded
}

// IsInProgress covers statuses the provider may still move forward.
func (s PaymentStatus) IsInProgress() bool {
	return s == PaymentStatusPending || s == PaymentStatusWaitingForCapture
}

func (s PaymentStatus) String() string {
	return string(s)
}
