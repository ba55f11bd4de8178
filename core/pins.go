package core

import "errors"

// PinRef is a logical pin reference as supplied by the caller. The resolver
// maps it to a physical Pin number.
type PinRef int16

// PinRefNone marks an unset optional pin role.
const PinRefNone PinRef = -1

var ErrInvalidPin = errors.New("i2s: pin reference is not valid")

// PinResolver maps a logical pin reference to a physical pin number.
// Pin ownership and mode checking live behind this boundary, not in core.
type PinResolver interface {
	Resolve(ref PinRef) (Pin, error)
}

// GPIOResolver resolves pin references as plain GPIO numbers in [0, MaxPin].
type GPIOResolver struct {
	MaxPin PinRef
}

// NewGPIOResolver returns a resolver covering the chip's GPIO matrix.
func NewGPIOResolver() GPIOResolver {
	return GPIOResolver{MaxPin: 39}
}

func (r GPIOResolver) Resolve(ref PinRef) (Pin, error) {
	if ref < 0 || ref > r.MaxPin {
		return PinNoChange, ErrInvalidPin
	}
	return Pin(ref), nil
}

// Global singleton used by the command layer.
var pinResolver PinResolver = NewGPIOResolver()

// SetPinResolver is called by target-specific code to register its resolver.
func SetPinResolver(r PinResolver) {
	pinResolver = r
}
