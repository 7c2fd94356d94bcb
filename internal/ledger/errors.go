package ledger

import "github.com/yanun0323/errors"

var (
	ErrUnknownPosition   = errors.New("unknown position id")
	ErrInvalidTransition = errors.New("invalid position transition")
)
