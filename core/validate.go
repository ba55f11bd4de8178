// Configuration validation
// Pure checks against the hardware's legal value sets. Validation runs before
// any port claim or driver call, so a rejected configuration never leaves
// partial hardware state behind.
package core

import "errors"

// Validation errors, one per check. Validation short-circuits at the first
// failing check, so exactly one of these surfaces per candidate.
var (
	ErrInvalidPort          = errors.New("i2s: port id is not valid")
	ErrUnsupportedMode      = errors.New("i2s: only master rx mode is supported")
	ErrInvalidBits          = errors.New("i2s: bits per sample is not valid")
	ErrInvalidChannelFormat = errors.New("i2s: channel format is not valid")
	ErrInvalidCommFormat    = errors.New("i2s: communication format is not valid")
	ErrInvalidDMACount      = errors.New("i2s: dma buffer count out of range [2,128]")
	ErrInvalidDMALen        = errors.New("i2s: dma buffer length out of range [8,1024]")
)

// Validate checks a candidate configuration against the hardware's legal
// sets and ranges and resolves the required pin roles. It has no side
// effects: the registry and driver are never touched.
func Validate(cfg Config, pins PinResolver) (PinAssignment, error) {
	var pa PinAssignment

	if cfg.Port >= NumPorts {
		return pa, ErrInvalidPort
	}

	// TODO: relax once the TX path is implemented.
	if cfg.Mode != ModeMasterRx {
		return pa, ErrUnsupportedMode
	}

	// Sample rate: no range check, the driver defines what it accepts.

	switch cfg.Bits {
	case Bits8, Bits16, Bits24, Bits32:
	default:
		return pa, ErrInvalidBits
	}

	switch cfg.ChannelFormat {
	case ChannelRightLeft, ChannelAllRight, ChannelAllLeft, ChannelOnlyRight, ChannelOnlyLeft:
	default:
		return pa, ErrInvalidChannelFormat
	}

	// Exactly one of the two legal flag combinations, not an arbitrary OR.
	if cfg.CommFormat != CommI2S|CommMSB && cfg.CommFormat != CommI2S|CommLSB {
		return pa, ErrInvalidCommFormat
	}

	if cfg.DMACount < DMACountMin || cfg.DMACount > DMACountMax {
		return pa, ErrInvalidDMACount
	}
	if cfg.DMALen < DMALenMin || cfg.DMALen > DMALenMax {
		return pa, ErrInvalidDMALen
	}

	// Fixed master clock: no range check, driver-defined.

	var err error
	if pa.SCK, err = pins.Resolve(cfg.SCK); err != nil {
		return PinAssignment{}, err
	}
	if pa.WS, err = pins.Resolve(cfg.WS); err != nil {
		return PinAssignment{}, err
	}
	// SDOut is not resolved until write support exists.
	pa.SDOut = PinNoChange
	if pa.SDIn, err = pins.Resolve(cfg.SDIn); err != nil {
		return PinAssignment{}, err
	}

	return pa, nil
}
