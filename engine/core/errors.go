package core

import (
	"errors"
)

var (
	ErrBaseAsset          = errors.New("base assets cannot be deleted")
	ErrUnknownAsset       = errors.New("unknown asset")
	ErrOutOfRange         = errors.New("index out of range")
	ErrInvalidEntity      = errors.New("invalid or destroyed entity")
	ErrNoComponent        = errors.New("entity has no such component")
	ErrDuplicateComponent = errors.New("entity already has this component")
	ErrInvariant          = errors.New("invariant violated")
	ErrUnknown            = errors.New("unknown")
)
