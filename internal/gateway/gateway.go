// Package gateway connects chat surfaces to the engine: a message
// starts a session, progress streams back as replies, and a reply to a
// confirmation request resumes the suspended session.
package gateway

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}
