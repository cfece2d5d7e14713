// Package protocol holds the host's view of the client connection:
// the extension message envelope and the stub used to send messages
// back to the client.  Wire encoding of these types belongs to the
// transport and is not handled here.
package protocol

// ExtensionMessage is an opaque, typed message exchanged between a
// client and a host extension.  Type selects the owning extension;
// Data is interpreted only by that extension.
type ExtensionMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientStub delivers host-originated messages to the connected
// client.
type ClientStub interface {
	DeliverHostMessage(msg *ExtensionMessage)
}

// ClientStubFunc adapts a plain function to ClientStub.
type ClientStubFunc func(msg *ExtensionMessage)

// DeliverHostMessage calls f(msg).
func (f ClientStubFunc) DeliverHostMessage(msg *ExtensionMessage) { f(msg) }
