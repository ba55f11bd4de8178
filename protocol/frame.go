// Frame layer for the serial link. Each frame is:
//
//	len(1) seq(1) payload... crc16(2, big endian) sync(1)
//
// len counts the whole frame. The decoder drops bytes until the next sync
// marker whenever a frame fails a structural or CRC check, so both ends
// recover from line noise without a reset.
package protocol

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 224
	MessagePayloadMax  = MessageLengthMax - MessageHeaderSize - MessageTrailerSize

	MessageSync = 0x7E
)

// EncodeFrame wraps a payload into a wire frame. Payloads longer than
// MessagePayloadMax are truncated by the caller's contract, never here;
// callers size their payloads to fit.
func EncodeFrame(seq uint8, payload []byte) []byte {
	total := MessageLengthMin + len(payload)
	frame := make([]byte, 0, total)
	frame = append(frame, byte(total), seq)
	frame = append(frame, payload...)
	crc := CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc), MessageSync)
	return frame
}

// Decoder accumulates raw serial bytes and emits validated frame payloads.
type Decoder struct {
	buf    []byte
	synced bool
}

// NewDecoder returns a decoder that assumes the line starts clean.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Feed appends raw bytes and invokes emit once per complete, valid frame.
// The payload slice passed to emit is only valid for the duration of the
// call.
func (d *Decoder) Feed(data []byte, emit func(seq uint8, payload []byte)) {
	d.buf = append(d.buf, data...)

	for {
		if !d.synced {
			// Drop everything up to and including the next sync marker.
			idx := -1
			for i, b := range d.buf {
				if b == MessageSync {
					idx = i
					break
				}
			}
			if idx < 0 {
				d.buf = d.buf[:0]
				return
			}
			d.buf = d.buf[idx+1:]
			d.synced = true
		}

		// Skip stray sync bytes between frames.
		for len(d.buf) > 0 && d.buf[0] == MessageSync {
			d.buf = d.buf[1:]
		}
		if len(d.buf) < MessageLengthMin {
			return
		}

		total := int(d.buf[0])
		if total < MessageLengthMin || total > MessageLengthMax {
			d.synced = false
			continue
		}
		if len(d.buf) < total {
			return
		}

		frame := d.buf[:total]
		if frame[total-1] != MessageSync {
			d.synced = false
			continue
		}
		wantCRC := uint16(frame[total-3])<<8 | uint16(frame[total-2])
		if CRC16(frame[:total-MessageTrailerSize]) != wantCRC {
			d.synced = false
			continue
		}

		emit(frame[1], frame[MessageHeaderSize:total-MessageTrailerSize])
		d.buf = d.buf[total:]
	}
}
