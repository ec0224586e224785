package repository

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time as Unix seconds.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().Unix() })

// IDSource produces unique opaque strings, used as temporary markers.
type IDSource interface {
	NewID() string
}

// IDSourceFunc adapts a plain function to IDSource.
type IDSourceFunc func() string

func (f IDSourceFunc) NewID() string { return f() }

// UUIDSource generates random UUIDv4 strings.
var UUIDSource IDSource = IDSourceFunc(func() string { return uuid.NewString() })
