// Package capture implements the host side of the gomic link: it drives the
// firmware's I2S commands over a serial port and streams captured samples.
package capture

import (
	"fmt"
	"io"
	"time"

	"gomic/core"
	"gomic/host/serial"
	"gomic/protocol"
)

func init() {
	// Host and firmware share one command table; registering here keeps the
	// IDs identical on both ends without a dictionary exchange.
	core.InitI2SCommands()
}

// statusText translates i2s_result codes into messages for the operator.
var statusText = map[uint8]string{
	core.StatusOK:            "ok",
	core.StatusInvalidConfig: "configuration rejected",
	core.StatusPortBusy:      "port already in use",
	core.StatusInstallFailed: "driver install failed",
	core.StatusPinFailed:     "pin routing failed",
	core.StatusWrongMode:     "session is not in master rx mode",
	core.StatusInvalidArg:    "read parameter rejected",
	core.StatusUnknownOID:    "unknown object id",
}

// Client is a connection to a gomic device.
type Client struct {
	port serial.Port
	dec  *protocol.Decoder
	seq  uint8
	oid  uint8

	// ResponseTimeout bounds how long command replies may take. Read
	// replies additionally wait for the read's own timeout.
	ResponseTimeout time.Duration
}

// Connect opens the serial device and returns a client using object ID 0.
func Connect(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		port:            port,
		dec:             protocol.NewDecoder(),
		ResponseTimeout: 2 * time.Second,
	}, nil
}

// Close closes the underlying serial port.
func (c *Client) Close() error {
	return c.port.Close()
}

func (c *Client) send(name string, build func(out protocol.OutputBuffer)) error {
	id, ok := core.CommandID(name)
	if !ok {
		return fmt.Errorf("command %q not in table", name)
	}
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, uint32(id))
	build(out)

	c.seq++
	frame := protocol.EncodeFrame(c.seq, out.Result())
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return c.port.Flush()
}

// reply is one decoded firmware response.
type reply struct {
	cmdID  uint16
	oid    uint8
	status uint8  // i2s_result only
	data   []byte // i2s_read_response / i2s_dump_response only
}

// waitReply reads frames until a response with one of the wanted command IDs
// arrives or the deadline passes.
func (c *Client) waitReply(deadline time.Time, wanted ...uint16) (*reply, error) {
	var got *reply
	buf := make([]byte, 512)

	for got == nil {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for device response")
		}
		n, err := c.port.Read(buf)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			continue
		}
		c.dec.Feed(buf[:n], func(seq uint8, payload []byte) {
			if got != nil {
				return
			}
			r, perr := parseReply(payload)
			if perr != nil {
				return
			}
			for _, id := range wanted {
				if r.cmdID == id {
					got = r
					return
				}
			}
		})
	}
	return got, nil
}

func parseReply(payload []byte) (*reply, error) {
	data := payload
	cmdID, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, err
	}
	oid, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, err
	}
	r := &reply{cmdID: uint16(cmdID), oid: uint8(oid)}

	resultID, _ := core.CommandID("i2s_result")
	if r.cmdID == resultID {
		status, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return nil, err
		}
		r.status = uint8(status)
		return r, nil
	}

	b, err := protocol.DecodeVLQBytes(&data)
	if err != nil {
		return nil, err
	}
	// Copy out: the payload slice dies with the decoder callback.
	r.data = append([]byte(nil), b...)
	return r, nil
}

func statusErr(status uint8) error {
	if status == core.StatusOK {
		return nil
	}
	msg, ok := statusText[status]
	if !ok {
		msg = "status " + fmt.Sprint(status)
	}
	return fmt.Errorf("device: %s", msg)
}

func encodeConfig(out protocol.OutputBuffer, oid uint8, cfg core.Config) {
	protocol.EncodeVLQUint(out, uint32(oid))
	protocol.EncodeVLQUint(out, uint32(cfg.Port))
	protocol.EncodeVLQUint(out, uint32(cfg.Mode))
	protocol.EncodeVLQUint(out, uint32(cfg.SampleRate))
	protocol.EncodeVLQUint(out, uint32(cfg.Bits))
	protocol.EncodeVLQUint(out, uint32(cfg.ChannelFormat))
	protocol.EncodeVLQUint(out, uint32(cfg.CommFormat))
	protocol.EncodeVLQUint(out, uint32(cfg.DMACount))
	protocol.EncodeVLQUint(out, uint32(cfg.DMALen))
	useAPLL := uint32(0)
	if cfg.UseAPLL {
		useAPLL = 1
	}
	protocol.EncodeVLQUint(out, useAPLL)
	protocol.EncodeVLQInt(out, cfg.FixedMClk)
	protocol.EncodeVLQInt(out, int32(cfg.SCK))
	protocol.EncodeVLQInt(out, int32(cfg.WS))
	protocol.EncodeVLQInt(out, int32(cfg.SDIn))
}

// Configure commits a configuration on the device.
func (c *Client) Configure(cfg core.Config) error {
	if err := c.send("config_i2s", func(out protocol.OutputBuffer) {
		encodeConfig(out, c.oid, cfg)
	}); err != nil {
		return err
	}
	resultID, _ := core.CommandID("i2s_result")
	r, err := c.waitReply(time.Now().Add(c.ResponseTimeout), resultID)
	if err != nil {
		return err
	}
	return statusErr(r.status)
}

// ReadChunk performs one buffered read of up to core.ReadChunkMax bytes.
// timeoutMS < 0 blocks on the device until the chunk is full.
func (c *Client) ReadChunk(length int, timeoutMS int32) ([]byte, error) {
	if length > core.ReadChunkMax {
		length = core.ReadChunkMax
	}
	if err := c.send("i2s_read", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(c.oid))
		protocol.EncodeVLQUint(out, uint32(length))
		protocol.EncodeVLQInt(out, timeoutMS)
	}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.ResponseTimeout)
	if timeoutMS > 0 {
		deadline = deadline.Add(time.Duration(timeoutMS) * time.Millisecond)
	}
	readID, _ := core.CommandID("i2s_read_response")
	resultID, _ := core.CommandID("i2s_result")
	r, err := c.waitReply(deadline, readID, resultID)
	if err != nil {
		return nil, err
	}
	if r.cmdID == resultID {
		return nil, statusErr(r.status)
	}
	return r.data, nil
}

// Capture streams totalBytes of audio into w using repeated chunk reads.
// Returns the number of bytes written.
func (c *Client) Capture(w io.Writer, totalBytes int, timeoutMS int32) (int, error) {
	written := 0
	for written < totalBytes {
		want := totalBytes - written
		if want > core.ReadChunkMax {
			want = core.ReadChunkMax
		}
		data, err := c.ReadChunk(want, timeoutMS)
		if err != nil {
			return written, err
		}
		if len(data) == 0 {
			// Device timed out with nothing captured; keep polling.
			continue
		}
		n, err := w.Write(data)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Dump fetches the device's configuration dump string.
func (c *Client) Dump() (string, error) {
	if err := c.send("i2s_dump", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(c.oid))
	}); err != nil {
		return "", err
	}
	dumpID, _ := core.CommandID("i2s_dump_response")
	resultID, _ := core.CommandID("i2s_result")
	r, err := c.waitReply(time.Now().Add(c.ResponseTimeout), dumpID, resultID)
	if err != nil {
		return "", err
	}
	if r.cmdID == resultID {
		return "", statusErr(r.status)
	}
	return string(r.data), nil
}

// Deinit releases the device session.
func (c *Client) Deinit() error {
	if err := c.send("i2s_deinit", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(c.oid))
	}); err != nil {
		return err
	}
	resultID, _ := core.CommandID("i2s_result")
	r, err := c.waitReply(time.Now().Add(c.ResponseTimeout), resultID)
	if err != nil {
		return err
	}
	return statusErr(r.status)
}
