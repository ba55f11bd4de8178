package capture

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"gomic/core"
	"gomic/protocol"
)

// loopPort is a serial.Port wired straight into the firmware's command
// dispatcher: frames written by the client are decoded and handled, and
// responses queue up for the next Read. It stands in for a real device.
type loopPort struct {
	mu      sync.Mutex
	decoder *protocol.Decoder
	rxSeq   uint8
	pending bytes.Buffer
}

func newLoopPort() *loopPort {
	p := &loopPort{decoder: protocol.NewDecoder()}
	core.SetResponseSender(func(payload []byte) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.rxSeq++
		p.pending.Write(protocol.EncodeFrame(p.rxSeq, payload))
	})
	return p
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.decoder.Feed(b, func(seq uint8, payload []byte) {
		data := payload
		_ = core.DispatchCommand(&data)
	})
	return len(b), nil
}

func (p *loopPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Read(b)
}

func (p *loopPort) Close() error { return nil }
func (p *loopPort) Flush() error { return nil }

// fakeDriver satisfies core.I2SDriver with deterministic sample data.
type fakeDriver struct {
	pattern byte
}

func (d *fakeDriver) Install(port core.PortID, cfg core.Config) error { return nil }

func (d *fakeDriver) SetPins(port core.PortID, pins core.PinAssignment) error { return nil }

func (d *fakeDriver) Read(port core.PortID, dst []byte, timeoutTicks uint32) (int, error) {
	for i := range dst {
		dst[i] = d.pattern
	}
	return len(dst), nil
}

func (d *fakeDriver) Uninstall(port core.PortID) {}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	core.SetI2SDriver(&fakeDriver{pattern: 0xA5})
	core.SetPinResolver(core.NewGPIOResolver())
	port := newLoopPort()
	t.Cleanup(func() { core.SetResponseSender(nil) })

	return &Client{
		port:            port,
		dec:             protocol.NewDecoder(),
		ResponseTimeout: time.Second,
	}
}

func captureConfig() core.Config {
	cfg := core.DefaultConfig(core.Num0)
	cfg.SampleRate = 16000
	cfg.Bits = core.Bits16
	cfg.ChannelFormat = core.ChannelOnlyLeft
	cfg.CommFormat = core.CommI2S | core.CommMSB
	cfg.SCK = 14
	cfg.WS = 15
	cfg.SDIn = 32
	return cfg
}

func TestClientConfigureCaptureDeinit(t *testing.T) {
	c := newTestClient(t)

	if err := c.Configure(captureConfig()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer c.Deinit()

	var sink bytes.Buffer
	n, err := c.Capture(&sink, 1000, -1)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if n != 1000 || sink.Len() != 1000 {
		t.Errorf("captured %d bytes (sink %d), want 1000", n, sink.Len())
	}
	for i, b := range sink.Bytes() {
		if b != 0xA5 {
			t.Fatalf("byte %d = %02x, want a5", i, b)
		}
	}

	if err := c.Deinit(); err != nil {
		t.Fatalf("Deinit: %v", err)
	}
	// A second deinit reports the object as gone.
	if err := c.Deinit(); err == nil {
		t.Error("second Deinit succeeded, want unknown object id")
	}
}

func TestClientConfigureRejected(t *testing.T) {
	c := newTestClient(t)

	cfg := captureConfig()
	cfg.CommFormat = core.CommMSB // illegal combination
	err := c.Configure(cfg)
	if err == nil {
		t.Fatal("illegal config accepted")
	}
	if !strings.Contains(err.Error(), "configuration rejected") {
		t.Errorf("error %q does not name the rejection", err)
	}
}

func TestClientDump(t *testing.T) {
	c := newTestClient(t)

	if err := c.Configure(captureConfig()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer c.Deinit()

	dump, err := c.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(dump, "samplerate=16000") {
		t.Errorf("dump %q missing sample rate", dump)
	}
}

func TestClientReadChunkBounded(t *testing.T) {
	c := newTestClient(t)
	if err := c.Configure(captureConfig()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer c.Deinit()

	data, err := c.ReadChunk(10000, -1)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if len(data) != core.ReadChunkMax {
		t.Errorf("chunk of %d bytes, want the %d-byte frame bound", len(data), core.ReadChunkMax)
	}
}
