package export

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/tigerroll/yotposync/internal/yotpo"
)

// Outcome classifies one dispatch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAuthenticationError
	OutcomeTransientServiceError
	OutcomeUnknownError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthenticationError:
		return "authentication_error"
	case OutcomeTransientServiceError:
		return "transient_service_error"
	default:
		return "unknown_error"
	}
}

// Classify maps the result of yotpo.Client.Send to an Outcome.
//
// 401 is an authentication error. 500, 502, 503, 504 and timeouts are
// transient. Everything else that is not a confirmed success, including a
// 2xx carrying a failed SaaS status, is unknown.
func Classify(ok bool, err error) Outcome {
	if err == nil {
		if ok {
			return OutcomeSuccess
		}
		return OutcomeUnknownError
	}

	var statusErr *yotpo.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return OutcomeAuthenticationError
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return OutcomeTransientServiceError
		default:
			return OutcomeUnknownError
		}
	}
	if isTimeout(err) {
		return OutcomeTransientServiceError
	}
	return OutcomeUnknownError
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
