package core

import (
	"strings"
	"testing"

	"gomic/protocol"
)

// capturedReply is one response decoded from the test response sender.
type capturedReply struct {
	name   string
	oid    uint8
	status uint8
	data   []byte
}

// setupI2SCommands resets the global command state and installs a fake
// driver, returning the reply log.
func setupI2SCommands(t *testing.T) (*fakeDriver, *[]capturedReply) {
	t.Helper()

	globalRegistry = NewCommandRegistry()
	portRegistry = NewPortRegistry()
	i2sSessions = make(map[uint8]*Session)
	drv := newFakeDriver()
	SetI2SDriver(drv)
	SetPinResolver(NewGPIOResolver())
	InitI2SCommands()

	replies := &[]capturedReply{}
	SetResponseSender(func(payload []byte) {
		data := payload
		cmdID, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			t.Fatalf("bad response payload: %v", err)
		}
		cmd, ok := globalRegistry.GetCommand(uint16(cmdID))
		if !ok {
			t.Fatalf("response with unknown command ID %d", cmdID)
		}
		oid, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			t.Fatalf("response without oid: %v", err)
		}
		r := capturedReply{name: cmd.Name, oid: uint8(oid)}
		switch cmd.Name {
		case "i2s_result":
			status, err := protocol.DecodeVLQUint(&data)
			if err != nil {
				t.Fatalf("i2s_result without status: %v", err)
			}
			r.status = uint8(status)
		default:
			b, err := protocol.DecodeVLQBytes(&data)
			if err != nil {
				t.Fatalf("%s without data: %v", cmd.Name, err)
			}
			r.data = append([]byte(nil), b...)
		}
		*replies = append(*replies, r)
	})
	t.Cleanup(func() { SetResponseSender(nil) })

	return drv, replies
}

// encodeConfigArgs builds the argument block shared by config_i2s and
// i2s_reinit.
func encodeConfigArgs(oid uint8, cfg Config) []byte {
	out := protocol.NewScratchOutput()
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
	return out.Result()
}

func lastReply(t *testing.T, replies *[]capturedReply) capturedReply {
	t.Helper()
	if len(*replies) == 0 {
		t.Fatal("no response sent")
	}
	return (*replies)[len(*replies)-1]
}

func TestI2SCommandRegistration(t *testing.T) {
	setupI2SCommands(t)

	names := []string{
		"config_i2s", "i2s_reinit", "i2s_read", "i2s_deinit", "i2s_dump",
		"i2s_result", "i2s_read_response", "i2s_dump_response",
	}
	for _, name := range names {
		if _, ok := globalRegistry.GetCommandByName(name); !ok {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestConfigI2SCommand(t *testing.T) {
	drv, replies := setupI2SCommands(t)

	data := encodeConfigArgs(0, validConfig())
	if err := handleConfigI2S(&data); err != nil {
		t.Fatalf("handleConfigI2S: %v", err)
	}

	r := lastReply(t, replies)
	if r.name != "i2s_result" || r.status != StatusOK {
		t.Fatalf("got %+v, want i2s_result OK", r)
	}
	session, ok := i2sSessions[0]
	if !ok || !session.Active() {
		t.Fatal("session not created")
	}
	if drv.installs != 1 || drv.setPins != 1 {
		t.Errorf("installs=%d setPins=%d, want 1/1", drv.installs, drv.setPins)
	}
	if drv.lastCfg.SampleRate != 16000 || drv.lastCfg.Bits != Bits16 {
		t.Errorf("driver saw config %+v", drv.lastCfg)
	}
}

func TestConfigI2SRejectsBadCommFormat(t *testing.T) {
	drv, replies := setupI2SCommands(t)

	cfg := validConfig()
	cfg.CommFormat = CommI2S // not one of the two legal combinations
	data := encodeConfigArgs(0, cfg)
	if err := handleConfigI2S(&data); err != nil {
		t.Fatalf("handleConfigI2S: %v", err)
	}

	r := lastReply(t, replies)
	if r.status != StatusInvalidConfig {
		t.Fatalf("status=%d, want StatusInvalidConfig", r.status)
	}
	if portRegistry.IsClaimed(Num0) {
		t.Error("registry touched by rejected config")
	}
	if drv.installs != 0 {
		t.Error("driver touched by rejected config")
	}
}

func TestConfigI2SPortBusyAcrossOIDs(t *testing.T) {
	_, replies := setupI2SCommands(t)

	data := encodeConfigArgs(0, validConfig())
	if err := handleConfigI2S(&data); err != nil {
		t.Fatal(err)
	}

	data = encodeConfigArgs(1, validConfig()) // same port, second object
	if err := handleConfigI2S(&data); err != nil {
		t.Fatal(err)
	}
	if r := lastReply(t, replies); r.status != StatusPortBusy {
		t.Fatalf("status=%d, want StatusPortBusy", r.status)
	}
}

func TestI2SReadCommand(t *testing.T) {
	drv, replies := setupI2SCommands(t)

	data := encodeConfigArgs(0, validConfig())
	if err := handleConfigI2S(&data); err != nil {
		t.Fatal(err)
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 0)   // oid
	protocol.EncodeVLQUint(out, 128) // length
	protocol.EncodeVLQInt(out, -1)   // timeout: block
	data = out.Result()
	if err := handleI2SRead(&data); err != nil {
		t.Fatalf("handleI2SRead: %v", err)
	}

	r := lastReply(t, replies)
	if r.name != "i2s_read_response" {
		t.Fatalf("got %s, want i2s_read_response", r.name)
	}
	if len(r.data) != 128 {
		t.Errorf("data length %d, want 128", len(r.data))
	}
	if drv.lastTimeout != MaxDelay {
		t.Errorf("timeout %d, want MaxDelay", drv.lastTimeout)
	}
}

func TestI2SReadUnknownOID(t *testing.T) {
	_, replies := setupI2SCommands(t)

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 9)
	protocol.EncodeVLQUint(out, 16)
	protocol.EncodeVLQInt(out, -1)
	data := out.Result()
	if err := handleI2SRead(&data); err != nil {
		t.Fatal(err)
	}
	if r := lastReply(t, replies); r.status != StatusUnknownOID {
		t.Fatalf("status=%d, want StatusUnknownOID", r.status)
	}
}

func TestI2SReinitCommand(t *testing.T) {
	_, replies := setupI2SCommands(t)

	data := encodeConfigArgs(0, validConfig())
	if err := handleConfigI2S(&data); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig()
	cfg.Port = Num1
	data = encodeConfigArgs(0, cfg)
	if err := handleI2SReinit(&data); err != nil {
		t.Fatal(err)
	}
	if r := lastReply(t, replies); r.status != StatusOK {
		t.Fatalf("status=%d, want OK", r.status)
	}
	if portRegistry.IsClaimed(Num0) {
		t.Error("old port still claimed")
	}
	if !portRegistry.IsClaimed(Num1) {
		t.Error("new port not claimed")
	}
}

func TestI2SDeinitCommand(t *testing.T) {
	drv, replies := setupI2SCommands(t)

	data := encodeConfigArgs(0, validConfig())
	if err := handleConfigI2S(&data); err != nil {
		t.Fatal(err)
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 0)
	data = out.Result()
	if err := handleI2SDeinit(&data); err != nil {
		t.Fatal(err)
	}
	if r := lastReply(t, replies); r.status != StatusOK {
		t.Fatalf("status=%d, want OK", r.status)
	}
	if portRegistry.IsClaimed(Num0) {
		t.Error("port still claimed after deinit")
	}
	if drv.uninstalls != 1 {
		t.Errorf("uninstalls=%d, want 1", drv.uninstalls)
	}
	if _, ok := i2sSessions[0]; ok {
		t.Error("session still registered after deinit")
	}
}

func TestI2SDumpCommand(t *testing.T) {
	_, replies := setupI2SCommands(t)

	data := encodeConfigArgs(0, validConfig())
	if err := handleConfigI2S(&data); err != nil {
		t.Fatal(err)
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 0)
	data = out.Result()
	if err := handleI2SDump(&data); err != nil {
		t.Fatal(err)
	}

	r := lastReply(t, replies)
	if r.name != "i2s_dump_response" {
		t.Fatalf("got %s, want i2s_dump_response", r.name)
	}
	text := string(r.data)
	for _, want := range []string{"samplerate=16000", "bits=16", "dmacount=16", "dmalen=64"} {
		if !strings.Contains(text, want) {
			t.Errorf("dump %q missing %q", text, want)
		}
	}
}
