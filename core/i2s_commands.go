// I2S command surface
// Exposes the peripheral session lifecycle to the host link: configure,
// re-init, buffered reads, and release. One session per object ID.
package core

import (
	"errors"

	"gomic/protocol"
)

// Status codes carried in i2s_result responses, one per error class.
const (
	StatusOK            = 0
	StatusInvalidConfig = 1
	StatusPortBusy      = 2
	StatusInstallFailed = 3
	StatusPinFailed     = 4
	StatusWrongMode     = 5
	StatusInvalidArg    = 6
	StatusUnknownOID    = 7
)

// ReadChunkMax bounds one i2s_read so its response fits in a single frame.
const ReadChunkMax = protocol.MessagePayloadMax - 8

// Global registry of I2S sessions by object ID.
var i2sSessions = make(map[uint8]*Session)

// InitI2SCommands registers the I2S commands with the command registry.
func InitI2SCommands() {
	RegisterCommand("config_i2s",
		"oid=%c port=%c mode=%c rate=%u bits=%c channel_format=%c comm_format=%c dma_count=%hu dma_len=%hu use_apll=%c fixed_mclk=%u sck=%u ws=%u sdin=%u",
		handleConfigI2S)

	RegisterCommand("i2s_reinit",
		"oid=%c port=%c mode=%c rate=%u bits=%c channel_format=%c comm_format=%c dma_count=%hu dma_len=%hu use_apll=%c fixed_mclk=%u sck=%u ws=%u sdin=%u",
		handleI2SReinit)

	RegisterCommand("i2s_read", "oid=%c length=%hu timeout=%u", handleI2SRead)
	RegisterCommand("i2s_deinit", "oid=%c", handleI2SDeinit)
	RegisterCommand("i2s_dump", "oid=%c", handleI2SDump)

	// Responses (firmware -> host)
	RegisterResponse("i2s_result", "oid=%c status=%c")
	RegisterResponse("i2s_read_response", "oid=%c data=%*s")
	RegisterResponse("i2s_dump_response", "oid=%c text=%*s")
}

// StatusFor maps a session error to its wire status code.
func StatusFor(err error) uint8 {
	var installErr *InstallError
	var pinErr *PinError
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrPortBusy):
		return StatusPortBusy
	case errors.As(err, &installErr):
		return StatusInstallFailed
	case errors.As(err, &pinErr):
		return StatusPinFailed
	case errors.Is(err, ErrWrongMode):
		return StatusWrongMode
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArg
	default:
		// Validation and pin-resolution failures.
		return StatusInvalidConfig
	}
}

// decodeI2SConfig decodes the shared argument block of config_i2s and
// i2s_reinit.
func decodeI2SConfig(data *[]byte) (oid uint8, cfg Config, err error) {
	fieldsU := make([]uint32, 0, 8)
	for i := 0; i < 8; i++ {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return 0, Config{}, err
		}
		fieldsU = append(fieldsU, v)
	}
	// oid, port, mode, rate, bits, channel_format, comm_format, dma_count
	oid = uint8(fieldsU[0])
	cfg.Port = PortID(fieldsU[1])
	cfg.Mode = Mode(fieldsU[2])
	cfg.SampleRate = int32(fieldsU[3])
	cfg.Bits = BitsPerSample(fieldsU[4])
	cfg.ChannelFormat = ChannelFormat(fieldsU[5])
	cfg.CommFormat = CommFormat(fieldsU[6])
	cfg.DMACount = int16(fieldsU[7])

	dmaLen, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, Config{}, err
	}
	cfg.DMALen = int16(dmaLen)

	useAPLL, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, Config{}, err
	}
	cfg.UseAPLL = useAPLL != 0

	fixedMClk, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return 0, Config{}, err
	}
	cfg.FixedMClk = fixedMClk

	sck, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return 0, Config{}, err
	}
	ws, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return 0, Config{}, err
	}
	sdin, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return 0, Config{}, err
	}
	cfg.SCK = PinRef(sck)
	cfg.WS = PinRef(ws)
	cfg.SDIn = PinRef(sdin)
	cfg.SDOut = PinRefNone

	return oid, cfg, nil
}

func sendResult(oid uint8, status uint8) {
	SendResponse("i2s_result", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(oid))
		protocol.EncodeVLQUint(out, uint32(status))
	})
}

// handleConfigI2S creates a session and commits its configuration.
// Format: config_i2s oid=%c port=%c mode=%c rate=%u ... sdin=%u
func handleConfigI2S(data *[]byte) error {
	oid, cfg, err := decodeI2SConfig(data)
	if err != nil {
		return err
	}

	if existing, ok := i2sSessions[oid]; ok && existing.Active() {
		// An active object ID must be re-initialized or released first.
		sendResult(oid, StatusPortBusy)
		return nil
	}

	session := NewSession(portRegistry, MustI2S(), pinResolver)
	if err := session.Configure(cfg); err != nil {
		sendResult(oid, StatusFor(err))
		return nil
	}

	i2sSessions[oid] = session
	sendResult(oid, StatusOK)
	return nil
}

// handleI2SReinit tears down an existing session and reconfigures it.
// Format: i2s_reinit oid=%c port=%c mode=%c rate=%u ... sdin=%u
func handleI2SReinit(data *[]byte) error {
	oid, cfg, err := decodeI2SConfig(data)
	if err != nil {
		return err
	}

	session, ok := i2sSessions[oid]
	if !ok {
		sendResult(oid, StatusUnknownOID)
		return nil
	}

	if err := session.Reconfigure(cfg); err != nil {
		sendResult(oid, StatusFor(err))
		return nil
	}

	sendResult(oid, StatusOK)
	return nil
}

// handleI2SRead performs one buffered read and responds with the captured
// bytes. A timeout encoded as -1 blocks until the chunk is full.
// Format: i2s_read oid=%c length=%hu timeout=%u
func handleI2SRead(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	length, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	timeout, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return err
	}

	session, ok := i2sSessions[uint8(oid)]
	if !ok {
		sendResult(uint8(oid), StatusUnknownOID)
		return nil
	}

	if length > ReadChunkMax {
		length = ReadChunkMax
	}
	buf := make([]byte, length)

	n, err := session.ReadInto(buf, timeout)
	if err != nil {
		sendResult(uint8(oid), StatusFor(err))
		return nil
	}

	SendResponse("i2s_read_response", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, oid)
		protocol.EncodeVLQBytes(out, buf[:n])
	})
	return nil
}

// handleI2SDeinit releases a session's port and uninstalls the driver.
// Format: i2s_deinit oid=%c
func handleI2SDeinit(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	session, ok := i2sSessions[uint8(oid)]
	if !ok {
		sendResult(uint8(oid), StatusUnknownOID)
		return nil
	}

	session.Release()
	delete(i2sSessions, uint8(oid))
	sendResult(uint8(oid), StatusOK)
	return nil
}

// handleI2SDump responds with the session's configuration dump.
// Format: i2s_dump oid=%c
func handleI2SDump(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	session, ok := i2sSessions[uint8(oid)]
	if !ok {
		sendResult(uint8(oid), StatusUnknownOID)
		return nil
	}

	text := session.Config().String()
	SendResponse("i2s_dump_response", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, oid)
		protocol.EncodeVLQBytes(out, []byte(text))
	})
	return nil
}

// ReleaseAllI2S releases every active session (called during shutdown).
func ReleaseAllI2S() {
	for oid, session := range i2sSessions {
		session.Release()
		delete(i2sSessions, oid)
	}
}
