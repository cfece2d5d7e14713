package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is the JSON document the bundled extensions carry in
// ExtensionMessage.Data: a verb and an optional payload.
type Command struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// DecodeCommand parses data as a Command.  An empty verb is an error.
func DecodeCommand(data string) (Command, error) {
	var c Command
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if c.Type == "" {
		return Command{}, fmt.Errorf("decode command: missing type")
	}
	return c, nil
}

// NewCommandMessage returns an ExtensionMessage of msgType whose Data is
// the encoded Command {verb, data}.
func NewCommandMessage(msgType, verb, data string) *ExtensionMessage {
	// Marshalling two strings cannot fail.
	b, _ := json.Marshal(Command{Type: verb, Data: data})
	return &ExtensionMessage{Type: msgType, Data: string(b)}
}
