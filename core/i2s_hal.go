package core

import "errors"

// PortID identifies one of the physical I2S peripheral ports.
type PortID uint8

const (
	Num0 PortID = 0
	Num1 PortID = 1

	// NumPorts is the number of physical I2S ports on the chip.
	NumPorts = 2
)

// Pin is a physical GPIO pin number as understood by the hardware driver.
type Pin int8

// PinNoChange tells the driver to leave a pin role unassigned.
const PinNoChange Pin = -1

// PinAssignment holds the resolved physical pins for one configured port.
type PinAssignment struct {
	SCK   Pin // bit clock
	WS    Pin // word select
	SDOut Pin // serial data out, PinNoChange until TX is supported
	SDIn  Pin // serial data in
}

// Errors reported by I2SDriver implementations. The session layer maps these
// to the error types surfaced to callers.
var (
	ErrDriverParam = errors.New("i2s: driver parameter error")
	ErrDriverNoMem = errors.New("i2s: driver out of memory")
	ErrDriverIO    = errors.New("i2s: driver io error")
)

// I2SDriver is the abstract I2S hardware interface that core code uses.
// Platform-specific implementations program the actual peripheral and run
// the DMA ring buffer.
type I2SDriver interface {
	// Install allocates the peripheral and its DMA buffers for a port using
	// an already-validated configuration.
	Install(port PortID, cfg Config) error

	// SetPins routes the peripheral signals to physical pins.
	SetPins(port PortID, pins PinAssignment) error

	// Read blocks until dst is filled, the timeout elapses, or the driver
	// rejects the call. timeoutTicks is in driver ticks; MaxDelay blocks
	// indefinitely. Returns the number of bytes written into dst; a timeout
	// with a partial fill is not an error.
	Read(port PortID, dst []byte, timeoutTicks uint32) (int, error)

	// Uninstall stops the peripheral and frees its DMA buffers.
	Uninstall(port PortID)
}

// Global singleton used by the command layer.
var i2sDriver I2SDriver

// SetI2SDriver is called by target-specific code to register its driver.
func SetI2SDriver(d I2SDriver) {
	i2sDriver = d
}

// MustI2S returns the configured driver or panics if missing.
func MustI2S() I2SDriver {
	if i2sDriver == nil {
		panic("I2S driver not configured")
	}
	return i2sDriver
}
