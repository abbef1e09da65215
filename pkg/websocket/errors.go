package websocket

import (
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"

	"market-relay/pkg/exception"
)

var lostCloseCodes = []int{
	int(CloseNormal),
	int(CloseGoingAway),
	int(CloseAbnormal),
	int(CloseServiceRestart),
	int(CloseTryAgainLater),
}

// IsConnectionLost reports whether err means the peer went away and the
// session can be re-established.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exception.ErrConnectionLost) {
		return true
	}
	if websocket.IsCloseError(err, lostCloseCodes...) {
		return true
	}
	for _, target := range []error{
		io.EOF,
		io.ErrUnexpectedEOF,
		net.ErrClosed,
		websocket.ErrCloseSent,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EPIPE,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsConnectionLost(err) {
		return errors.Wrapf(exception.ErrConnectionLost, "%v", err)
	}
	return errors.Wrapf(exception.ErrTransport, "%v", err)
}
