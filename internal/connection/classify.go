package connection

import (
	"errors"
	"io"
	"net"
	"syscall"

	"devlink/internal/domain"
)

// Status codes understood by Classify.
const (
	codeLoggedOut       = 401
	codeForbidden       = 403
	codeTimedOut        = 408
	codeConnClosed      = 428
	codeReplaced        = 440
	codeUnavailable     = 503
	codeRestartRequired = 515
	codeGoingAway       = 1001
	codeAbnormal        = 1006
)

// Classify maps a close status code and the transport error that ended a
// connection to a DisconnectReason. It is total: codes it does not know
// become DisconnectUnknown, which is retryable.
func Classify(code int, err error) domain.DisconnectReason {
	switch code {
	case codeLoggedOut, codeForbidden:
		return domain.DisconnectReason{Kind: domain.DisconnectLoggedOut, Code: code}
	case codeReplaced:
		return domain.DisconnectReason{Kind: domain.DisconnectProtocolConflict, Code: code}
	case codeTimedOut, codeConnClosed, codeUnavailable, codeRestartRequired, codeGoingAway, codeAbnormal:
		return domain.DisconnectReason{Kind: domain.DisconnectTransientNetwork, Code: code}
	case 0:
		if isNetworkError(err) {
			return domain.DisconnectReason{Kind: domain.DisconnectTransientNetwork}
		}
	}
	return domain.DisconnectReason{Kind: domain.DisconnectUnknown, Code: code}
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
