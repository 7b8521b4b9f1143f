//go:build !tinygo || nodebug

// Package display provides a no-op stub when built with the nodebug tag
// or for the host.
package display

import "log/slog"

// Manager is a no-op stub when nodebug build tag is used.
type Manager struct{}

// NewManager returns nil when nodebug build tag is used.
// The serial link handles a nil display gracefully.
func NewManager(log *slog.Logger) *Manager {
	return nil
}

// ShowIncomingFrame is a no-op in nodebug mode.
func (m *Manager) ShowIncomingFrame(bytesStr, parsedStr string) {}

// ShowOutgoingResponse is a no-op in nodebug mode.
func (m *Manager) ShowOutgoingResponse(bytesStr, parsedStr string) {}

// ShowError is a no-op in nodebug mode.
func (m *Manager) ShowError(msg string) {}

// ShowStatus is a no-op in nodebug mode.
func (m *Manager) ShowStatus(status string) {}
