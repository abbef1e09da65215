package model

// StatusCode is the provider's status field. Codes not listed here are kept
// verbatim and treated as informational.
type StatusCode string

const (
	StatusConnected       StatusCode = "connected"
	StatusAuthSuccess     StatusCode = "auth_success"
	StatusAuthFailed      StatusCode = "auth_failed"
	StatusAuthTimeout     StatusCode = "auth_timeout"
	StatusSuccess         StatusCode = "success"
	StatusMaxConnections  StatusCode = "max_connections"
	StatusForceDisconnect StatusCode = "force_disconnect"
)

// IsFatal reports whether the provider is ending the session for good.
func (c StatusCode) IsFatal() bool {
	switch c {
	case StatusMaxConnections, StatusForceDisconnect:
		return true
	default:
		return false
	}
}

func (c StatusCode) String() string {
	return string(c)
}
