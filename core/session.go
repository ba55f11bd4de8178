// Peripheral session
// A Session owns one claimed port and its applied configuration, and walks
// the claim -> install -> pin-config -> read* -> release lifecycle. Any
// failure while configuring unwinds the completed steps in reverse order, so
// the registry never reports a port busy without a working session behind it.
package core

import "errors"

var (
	// ErrPortBusy means another session already holds the requested port.
	ErrPortBusy = errors.New("i2s: port is already in use")

	// ErrWrongMode means a read was attempted on a session that is not an
	// active master-receive session.
	ErrWrongMode = errors.New("i2s: communication mode must be master rx")

	// ErrInvalidArgument means the driver rejected the read parameters.
	ErrInvalidArgument = errors.New("i2s: read parameter error")
)

// InstallError reports a driver failure while installing the peripheral.
// The port claim has already been rolled back when it surfaces.
type InstallError struct {
	Reason error
}

func (e *InstallError) Error() string { return "i2s: driver install: " + e.Reason.Error() }
func (e *InstallError) Unwrap() error { return e.Reason }

// PinError reports a driver failure while routing pins. The driver install
// and the port claim have already been rolled back when it surfaces.
type PinError struct {
	Reason error
}

func (e *PinError) Error() string { return "i2s: set pin: " + e.Reason.Error() }
func (e *PinError) Unwrap() error { return e.Reason }

// Session represents one configured, claimed I2S port. A Session starts out
// uninitialized; Configure makes it active, Release returns it to
// uninitialized. Methods on a Session must not be called concurrently, and a
// session must not be released while a read is outstanding.
type Session struct {
	registry *PortRegistry
	driver   I2SDriver
	pins     PinResolver

	active     bool
	cfg        Config
	assignment PinAssignment
}

// NewSession returns an uninitialized session using the given collaborators.
func NewSession(registry *PortRegistry, driver I2SDriver, pins PinResolver) *Session {
	return &Session{
		registry: registry,
		driver:   driver,
		pins:     pins,
	}
}

// Configure validates the candidate configuration, claims its port, and
// commits it to hardware. On any failure the completed steps are unwound in
// reverse order before the error is returned, and the session stays
// uninitialized.
func (s *Session) Configure(cfg Config) error {
	assignment, err := Validate(cfg, s.pins)
	if err != nil {
		return err
	}

	if !s.registry.TryClaim(cfg.Port) {
		return ErrPortBusy
	}
	unwind := []func(){func() { s.registry.Release(cfg.Port) }}

	if err := s.driver.Install(cfg.Port, cfg); err != nil {
		runUnwind(unwind)
		return &InstallError{Reason: err}
	}
	unwind = append(unwind, func() { s.driver.Uninstall(cfg.Port) })

	if err := s.driver.SetPins(cfg.Port, assignment); err != nil {
		runUnwind(unwind)
		return &PinError{Reason: err}
	}

	s.cfg = cfg
	s.assignment = assignment
	s.active = true
	return nil
}

// Reconfigure tears the active session down unconditionally and then runs
// Configure with the new candidate. The teardown happens before the new
// configuration is validated, so a failed Reconfigure leaves the session
// uninitialized rather than restoring the previous configuration.
func (s *Session) Reconfigure(cfg Config) error {
	s.Release()
	return s.Configure(cfg)
}

// ReadInto fills dst with received samples, blocking for at most timeoutMS
// milliseconds. A negative timeout blocks until dst is full. It returns the
// number of bytes actually written, which is less than len(dst) when the
// timeout elapses first; a partial fill is not an error. The caller loops if
// it wants more data.
func (s *Session) ReadInto(dst []byte, timeoutMS int32) (int, error) {
	if !s.active || s.cfg.Mode != ModeMasterRx {
		return 0, ErrWrongMode
	}

	ticks := MaxDelay
	if timeoutMS >= 0 {
		ticks = TicksFromMS(uint32(timeoutMS))
	}

	n, err := s.driver.Read(s.cfg.Port, dst, ticks)
	if errors.Is(err, ErrDriverParam) {
		return 0, ErrInvalidArgument
	}
	// Other driver outcomes report through the byte count.
	return n, nil
}

// Release frees the port and uninstalls the driver. It is idempotent: calling
// it on an uninitialized session is a no-op.
func (s *Session) Release() {
	if !s.active {
		return
	}
	s.registry.Release(s.cfg.Port)
	s.driver.Uninstall(s.cfg.Port)
	s.active = false
}

// Active reports whether the session currently holds a configured port.
func (s *Session) Active() bool {
	return s.active
}

// Config returns the applied configuration. Only meaningful while active.
func (s *Session) Config() Config {
	return s.cfg
}

// Pins returns the resolved pin assignment. Only meaningful while active.
func (s *Session) Pins() PinAssignment {
	return s.assignment
}

// runUnwind reverses completed configure steps in opposite order, so the
// driver uninstall always happens before the port release.
func runUnwind(steps []func()) {
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}
