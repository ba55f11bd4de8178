// I2S peripheral configuration
// Enumerations mirror the hardware driver's register values so the wire
// protocol can carry them directly.
package core

// Mode is a bitmask of operating-mode flags.
type Mode uint8

const (
	ModeMaster Mode = 1 << 0
	ModeSlave  Mode = 1 << 1
	ModeTx     Mode = 1 << 2
	ModeRx     Mode = 1 << 3

	// ModeMasterRx is the only mode currently supported.
	ModeMasterRx = ModeMaster | ModeRx
)

// BitsPerSample is the sample depth in bits.
type BitsPerSample int16

const (
	Bits8  BitsPerSample = 8
	Bits16 BitsPerSample = 16
	Bits24 BitsPerSample = 24
	Bits32 BitsPerSample = 32
)

// ChannelFormat selects how samples map onto the left/right slots.
type ChannelFormat uint8

const (
	ChannelRightLeft ChannelFormat = 0 // separate right and left channels
	ChannelAllRight  ChannelFormat = 1 // right data to both channels
	ChannelAllLeft   ChannelFormat = 2 // left data to both channels
	ChannelOnlyRight ChannelFormat = 3 // mono, right slot
	ChannelOnlyLeft  ChannelFormat = 4 // mono, left slot
)

// CommFormat is a bitmask of communication-format flags. Only the two
// combinations CommI2S|CommMSB and CommI2S|CommLSB are accepted by the
// validator.
type CommFormat uint8

const (
	CommI2S CommFormat = 1 << 0
	CommMSB CommFormat = 1 << 1
	CommLSB CommFormat = 1 << 2
)

// DMA ring limits enforced by the hardware driver.
const (
	DMACountMin = 2
	DMACountMax = 128
	DMALenMin   = 8
	DMALenMax   = 1024
)

// Config is a candidate I2S peripheral configuration. It is validated as a
// whole before any hardware state is touched and never applied partially.
type Config struct {
	Port          PortID
	Mode          Mode
	SampleRate    int32 // Hz; range is driver-defined and not checked here
	Bits          BitsPerSample
	ChannelFormat ChannelFormat
	CommFormat    CommFormat
	DMACount      int16 // number of DMA buffers, [2,128]
	DMALen        int16 // length of each DMA buffer, [8,1024]
	UseAPLL       bool  // derive clocks from the auxiliary PLL
	FixedMClk     int32 // fixed master clock rate, 0 = derived; unchecked

	// Pin roles, resolved through the PinResolver during validation.
	// SDOut is accepted but stays unresolved until TX support exists.
	SCK   PinRef
	WS    PinRef
	SDOut PinRef
	SDIn  PinRef
}

// DefaultConfig returns a receive configuration for a port with the standard
// defaults filled in. Pin roles and sample format must still be set.
func DefaultConfig(port PortID) Config {
	return Config{
		Port:      port,
		Mode:      ModeMasterRx,
		DMACount:  16,
		DMALen:    64,
		UseAPLL:   false,
		FixedMClk: 0,
		SDOut:     PinRefNone,
	}
}

// String returns a human-readable dump of all configuration fields. It is
// informational only, not a wire format.
func (c Config) String() string {
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	return "I2S(port=" + utoa(uint32(c.Port)) +
		", mode=" + utoa(uint32(c.Mode)) +
		", samplerate=" + itoa(int(c.SampleRate)) +
		", bits=" + itoa(int(c.Bits)) +
		", channelformat=" + utoa(uint32(c.ChannelFormat)) +
		", commformat=" + utoa(uint32(c.CommFormat)) +
		", dmacount=" + itoa(int(c.DMACount)) +
		", dmalen=" + itoa(int(c.DMALen)) +
		", useapll=" + b(c.UseAPLL) +
		", fixedmclk=" + itoa(int(c.FixedMClk)) +
		", sck=" + itoa(int(c.SCK)) +
		", ws=" + itoa(int(c.WS)) +
		", sdout=" + itoa(int(c.SDOut)) +
		", sdin=" + itoa(int(c.SDIn)) + ")"
}
