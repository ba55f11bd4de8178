//go:build rp2040

package main

import (
	"runtime"

	"gomic/core"
	"gomic/protocol"
	"machine"
)

var (
	decoder *protocol.Decoder
	txSeq   uint8
)

func gosched() {
	runtime.Gosched()
}

// rp2040PinResolver restricts pin references to the RP2040 GPIO bank.
type rp2040PinResolver struct{}

func (rp2040PinResolver) Resolve(ref core.PinRef) (core.Pin, error) {
	if ref < 0 || ref > 29 {
		return core.PinNoChange, core.ErrInvalidPin
	}
	return core.Pin(ref), nil
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{})

	core.InitI2SCommands()
	core.SetI2SDriver(NewPIOI2SDriver())
	core.SetPinResolver(rp2040PinResolver{})

	core.SetResponseSender(func(payload []byte) {
		txSeq++
		frame := protocol.EncodeFrame(txSeq, payload)
		machine.Serial.Write(frame)
	})

	decoder = protocol.NewDecoder()
	rx := make([]byte, 64)

	for {
		n := 0
		for n < len(rx) {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			rx[n] = b
			n++
		}
		if n == 0 {
			gosched()
			continue
		}
		decoder.Feed(rx[:n], func(seq uint8, payload []byte) {
			data := payload
			// Command errors have no one to report to besides the host;
			// malformed frames are dropped after the decode attempt.
			_ = core.DispatchCommand(&data)
		})
	}
}
