package core

import (
	"errors"
	"sync"

	"gomic/protocol"
)

// CommandHandler handles a command with raw frame data. The handler decodes
// its own arguments from the data pointer and advances it past them.
type CommandHandler func(data *[]byte) error

// Command is one entry in the host link's command table.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument format, e.g. "oid=%c port=%c rate=%u"
	Handler CommandHandler // nil for responses (firmware -> host)
}

// CommandRegistry holds all registered commands and responses. Registration
// order is fixed at init time, so firmware and host derive the same IDs from
// the shared table.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	nextID   uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand registers a host-callable command in the global registry.
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a firmware-to-host message in the global
// registry. Responses have no handler.
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command to the registry and returns its ID. Registering an
// already-known name returns the existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++
	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	return id
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name.
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch decodes the leading command ID from the payload and calls the
// matching handler.
func (r *CommandRegistry) Dispatch(data *[]byte) error {
	id, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	cmd, ok := r.GetCommand(uint16(id))
	if !ok || cmd.Handler == nil {
		return errors.New("unknown command ID: " + utoa(id))
	}
	return cmd.Handler(data)
}

// DispatchCommand dispatches against the global registry.
func DispatchCommand(data *[]byte) error {
	return globalRegistry.Dispatch(data)
}

// CommandID returns the global registry ID for a command name. The host side
// uses this to build outgoing messages from the shared table.
func CommandID(name string) (uint16, bool) {
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		return 0, false
	}
	return cmd.ID, true
}

// ResponseSender delivers an encoded response payload to the host link.
type ResponseSender func(payload []byte)

var responseSender ResponseSender

// SetResponseSender is called by the transport layer (or tests) to receive
// outgoing responses.
func SetResponseSender(fn ResponseSender) {
	responseSender = fn
}

// SendResponse encodes a response message (command ID plus arguments written
// by build) and hands it to the registered sender. Responses are dropped
// silently when no sender is configured.
func SendResponse(name string, build func(out protocol.OutputBuffer)) {
	id, ok := CommandID(name)
	if !ok || responseSender == nil {
		return
	}
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, uint32(id))
	if build != nil {
		build(out)
	}
	responseSender(out.Result())
}
