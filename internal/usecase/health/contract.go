package health

import "context"

// SearchPinger checks search backend availability.
type SearchPinger interface {
	Ping(ctx context.Context) error
}

// StorePinger checks relational store availability.
type StorePinger interface {
	PingContext(ctx context.Context) error
}
