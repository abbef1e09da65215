package websocket

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultReadLimit        = 16 << 20
)

// Option configures the gorilla backed dialer.
type Option struct {
	HandshakeTimeout time.Duration
	// PingInterval is how often a ping is sent. Zero disables keepalive.
	PingInterval time.Duration
	// PongWait is how long a read may stay silent before the peer is
	// considered gone. Zero disables the read deadline.
	PongWait  time.Duration
	WriteWait time.Duration
	ReadLimit int64
	Header    http.Header
	TLSConfig *tls.Config
}

// DefaultOption returns keepalive and size limits suitable for a market data feed.
func DefaultOption() Option {
	return Option{
		HandshakeTimeout: DefaultHandshakeTimeout,
		PingInterval:     DefaultPingInterval,
		PongWait:         DefaultPongWait,
		WriteWait:        DefaultWriteWait,
		ReadLimit:        DefaultReadLimit,
	}
}

type dialer struct {
	url string
	opt Option
	ws  *websocket.Dialer
}

// NewDialer returns a Dialer for the given ws:// or wss:// url.
func NewDialer(url string, opt Option) Dialer {
	if opt.HandshakeTimeout <= 0 {
		opt.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opt.WriteWait <= 0 {
		opt.WriteWait = DefaultWriteWait
	}
	return &dialer{
		url: url,
		opt: opt,
		ws: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  opt.HandshakeTimeout,
			TLSClientConfig:   opt.TLSConfig,
			EnableCompression: false,
		},
	}
}

func (d *dialer) Dial(ctx context.Context) (Conn, error) {
	ws, resp, err := d.ws.DialContext(ctx, d.url, d.opt.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(classify(err), "dial %s, status: %s", d.url, resp.Status)
		}
		return nil, errors.Wrapf(classify(err), "dial %s", d.url)
	}
	return newConn(ws, d.opt), nil
}
