package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

// FailureForStatus classifies an HTTP status returned by a provider.
func FailureForStatus(status int) common.ProviderFailure {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return common.ProviderAuth
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		return common.ProviderQuota
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return common.ProviderTimeout
	default:
		return common.ProviderUnavailable
	}
}

// FoldError wraps err as a ProviderError. status is the HTTP status when known, 0 otherwise.
func FoldError(provider string, status int, err error) *common.ProviderError {
	var pe *common.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	out := &common.ProviderError{Provider: provider, Status: status, Cause: err}
	var netErr net.Error
	switch {
	case status != 0:
		out.Reason = FailureForStatus(status)
	case errors.Is(err, context.DeadlineExceeded):
		out.Reason = common.ProviderTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Reason = common.ProviderTimeout
	default:
		out.Reason = common.ProviderNetwork
	}
	return out
}
