package exchange

import "errors"

var (
	ErrUnknownVenue  = errors.New("no client registered for venue")
	ErrUnknownMarket = errors.New("unknown market")
)
