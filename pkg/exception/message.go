package exception

import "github.com/yanun0323/errors"

var (
	ErrDecode    = errors.New("message: decode failed")
	ErrSerialize = errors.New("message: serialize failed")
)
