//go:build rp2040

package main

// PIO-based I2S receive driver.
// Each I2S port maps to one PIO block (NUM0 -> PIO0, NUM1 -> PIO1) running a
// master-receive program: the state machine drives the bit clock and word
// select from sideset and shifts SDIN into the RX FIFO, 32 bits per stereo
// frame half. A drain goroutine moves FIFO words into a software ring buffer
// sized dma_count*dma_len, standing in for the DMA ring on chips that have
// a real I2S peripheral.

import (
	"sync"
	"time"

	"gomic/core"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Receive program, pre-assembled. pioasm source:
//
//	.program i2s_rx
//	.side_set 2
//	    set x, 30          side 0b01
//	left_bit:
//	    in pins, 1         side 0b00
//	    jmp x-- left_bit   side 0b01
//	    in pins, 1         side 0b10
//	    set x, 30          side 0b11
//	right_bit:
//	    in pins, 1         side 0b10
//	    jmp x-- right_bit  side 0b11
//	    in pins, 1         side 0b00
//
// side bit 0 is the bit clock, bit 1 is word select. Autopush at 32 bits
// pushes one channel word per WS half-cycle.
var i2sRxInstructions = []uint16{
	0xe83e, // set x, 30        side 0b01
	0x4001, // in pins, 1       side 0b00
	0x0841, // jmp x-- left_bit side 0b01
	0x5001, // in pins, 1       side 0b10
	0xf83e, // set x, 30        side 0b11
	0x5001, // in pins, 1       side 0b10
	0x1845, // jmp x-- right_bit side 0b11
	0x4001, // in pins, 1       side 0b00
}

const i2sRxOrigin = -1

// ring is a byte ring buffer with DMA-style overrun behavior: when the
// writer laps the reader, the oldest samples are dropped.
type ring struct {
	mu  sync.Mutex
	buf []byte
	r   int
	w   int
	n   int
}

func newRing(size int) *ring {
	return &ring{buf: make([]byte, size)}
}

func (rb *ring) write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for _, b := range p {
		rb.buf[rb.w] = b
		rb.w = (rb.w + 1) % len(rb.buf)
		if rb.n == len(rb.buf) {
			rb.r = (rb.r + 1) % len(rb.buf) // overrun, drop oldest
		} else {
			rb.n++
		}
	}
}

func (rb *ring) read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := 0
	for n < len(p) && rb.n > 0 {
		p[n] = rb.buf[rb.r]
		rb.r = (rb.r + 1) % len(rb.buf)
		rb.n--
		n++
	}
	return n
}

type pioPort struct {
	sm        rp2pio.StateMachine
	claimed   bool
	running   bool
	installed bool
	cfg       core.Config
	ring      *ring
	stop      chan struct{}
}

// PIOI2SDriver implements core.I2SDriver on the RP2040's PIO blocks.
type PIOI2SDriver struct {
	ports [core.NumPorts]pioPort

	// One program load per PIO block, shared across reinstalls.
	progOffset [core.NumPorts]int16
}

// NewPIOI2SDriver returns a driver with no ports installed.
func NewPIOI2SDriver() *PIOI2SDriver {
	d := &PIOI2SDriver{}
	d.progOffset[0] = -1
	d.progOffset[1] = -1
	return d
}

func pioBlock(port core.PortID) *rp2pio.PIO {
	if port == core.Num0 {
		return rp2pio.PIO0
	}
	return rp2pio.PIO1
}

func (d *PIOI2SDriver) Install(port core.PortID, cfg core.Config) error {
	if port >= core.NumPorts {
		return core.ErrDriverParam
	}
	p := &d.ports[port]
	if p.installed {
		return core.ErrDriverParam
	}

	sm, err := pioBlock(port).ClaimStateMachine()
	if err != nil {
		return core.ErrDriverNoMem
	}

	p.sm = sm
	p.claimed = true
	p.cfg = cfg
	p.ring = newRing(int(cfg.DMACount) * int(cfg.DMALen))
	p.installed = true
	return nil
}

func (d *PIOI2SDriver) SetPins(port core.PortID, pins core.PinAssignment) error {
	if port >= core.NumPorts {
		return core.ErrDriverParam
	}
	p := &d.ports[port]
	if !p.installed {
		return core.ErrDriverParam
	}

	// The program drives SCK and WS from consecutive sideset pins.
	if pins.WS != pins.SCK+1 {
		return core.ErrDriverParam
	}
	const maxGPIO = 29
	if pins.SCK < 0 || pins.WS > maxGPIO || pins.SDIn < 0 || pins.SDIn > maxGPIO {
		return core.ErrDriverParam
	}

	Pio := pioBlock(port)
	if d.progOffset[port] < 0 {
		offset, err := Pio.AddProgram(i2sRxInstructions, i2sRxOrigin)
		if err != nil {
			return core.ErrDriverIO
		}
		d.progOffset[port] = int16(offset)
	}
	offset := uint8(d.progOffset[port])

	sck := machine.Pin(pins.SCK)
	sdin := machine.Pin(pins.SDIn)
	pinCfg := machine.PinConfig{Mode: Pio.PinMode()}
	sck.Configure(pinCfg)
	(sck + 1).Configure(pinCfg)
	sdin.Configure(machine.PinConfig{Mode: machine.PinInput})

	smCfg := rp2pio.DefaultStateMachineConfig()
	smCfg.SetWrap(offset, offset+uint8(len(i2sRxInstructions))-1)
	smCfg.SetSidesetParams(2, false, false)
	smCfg.SetSidesetPins(sck)
	smCfg.SetInPins(sdin)
	smCfg.SetInShift(false, true, 32)
	smCfg.SetFIFOJoin(rp2pio.FifoJoinRx)

	// Two 32-bit channel words per frame, two PIO cycles per bit.
	bitFreq := uint32(p.cfg.SampleRate) * 32 * 2 * 2
	whole, frac, err := rp2pio.ClkDivFromFrequency(bitFreq, machine.CPUFrequency())
	if err != nil {
		return core.ErrDriverParam
	}
	smCfg.SetClkDivIntFrac(whole, frac)

	p.sm.Init(offset, smCfg)

	clockMask := uint32(0b11) << uint32(pins.SCK)
	p.sm.SetPindirsMasked(clockMask, clockMask|uint32(1)<<uint32(pins.SDIn))
	p.sm.SetEnabled(true)

	p.stop = make(chan struct{})
	p.running = true
	go d.drain(p)
	return nil
}

// drain moves RX FIFO words into the ring buffer until the port stops.
func (d *PIOI2SDriver) drain(p *pioPort) {
	var word [4]byte
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if p.sm.IsRxFIFOEmpty() {
			gosched()
			continue
		}
		v := p.sm.RxGet()
		word[0] = byte(v)
		word[1] = byte(v >> 8)
		word[2] = byte(v >> 16)
		word[3] = byte(v >> 24)
		p.ring.write(word[:bytesPerWord(p.cfg.Bits)])
	}
}

// bytesPerWord narrows a 32-bit FIFO word to the configured sample depth.
func bytesPerWord(bits core.BitsPerSample) int {
	n := int(bits) / 8
	if n < 1 || n > 4 {
		n = 4
	}
	return n
}

func (d *PIOI2SDriver) Read(port core.PortID, dst []byte, timeoutTicks uint32) (int, error) {
	if port >= core.NumPorts {
		return 0, core.ErrDriverParam
	}
	p := &d.ports[port]
	if !p.installed || !p.running || dst == nil {
		return 0, core.ErrDriverParam
	}

	var deadline time.Time
	if timeoutTicks != core.MaxDelay {
		deadline = time.Now().Add(time.Duration(core.MSFromTicks(timeoutTicks)) * time.Millisecond)
	}

	n := 0
	for n < len(dst) {
		n += p.ring.read(dst[n:])
		if n == len(dst) {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		gosched()
	}
	return n, nil
}

func (d *PIOI2SDriver) Uninstall(port core.PortID) {
	if port >= core.NumPorts {
		return
	}
	p := &d.ports[port]
	if !p.installed {
		return
	}
	if p.running {
		close(p.stop)
		p.running = false
	}
	p.sm.SetEnabled(false)
	p.sm.ClearFIFOs()
	if p.claimed {
		p.sm.Unclaim()
		p.claimed = false
	}
	p.ring = nil
	p.installed = false
}
