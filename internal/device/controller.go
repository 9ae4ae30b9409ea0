// Package device holds the local camera and microphone flags.
package device

import (
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain/entities"
)

// Controller owns the device state. Flags change only on explicit calls.
type Controller struct {
	mu    sync.RWMutex
	state entities.DeviceState

	onMicrophoneDisabled func()
	logger               *zap.Logger
}

// NewController creates a controller in the default state (both devices on)
func NewController(logger *zap.Logger) *Controller {
	return &Controller{
		state:  entities.DefaultDeviceState(),
		logger: logger,
	}
}

// OnMicrophoneDisabled registers a hook run whenever the microphone goes from
// enabled to disabled. The hook runs after the state lock is released.
func (c *Controller) OnMicrophoneDisabled(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMicrophoneDisabled = hook
}

// State returns a copy of the current flags
func (c *Controller) State() entities.DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// MicrophoneEnabled reports whether capture may run
func (c *Controller) MicrophoneEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.MicrophoneEnabled && c.state.MicrophoneAvailable
}

// ToggleMicrophone flips the microphone flag and returns the new value. An
// unavailable microphone stays off.
func (c *Controller) ToggleMicrophone() bool {
	c.mu.RLock()
	enabled := c.state.MicrophoneEnabled
	c.mu.RUnlock()

	c.SetMicrophone(!enabled)
	return c.State().MicrophoneEnabled
}

// SetMicrophone sets the microphone flag
func (c *Controller) SetMicrophone(enabled bool) {
	c.mu.Lock()
	if enabled && !c.state.MicrophoneAvailable {
		c.mu.Unlock()
		c.logger.Debug("Ignoring microphone enable, microphone unavailable")
		return
	}

	wasEnabled := c.state.MicrophoneEnabled
	c.state.MicrophoneEnabled = enabled
	hook := c.onMicrophoneDisabled
	c.mu.Unlock()

	c.logger.Debug("Microphone toggled", zap.Bool("enabled", enabled))

	if wasEnabled && !enabled && hook != nil {
		hook()
	}
}

// DisableMicrophone forces the microphone off and marks it unavailable. It
// returns true only on the first call so callers can warn once.
func (c *Controller) DisableMicrophone() bool {
	c.mu.Lock()
	if !c.state.MicrophoneAvailable {
		c.mu.Unlock()
		return false
	}
	wasEnabled := c.state.MicrophoneEnabled
	c.state.MicrophoneAvailable = false
	c.state.MicrophoneEnabled = false
	hook := c.onMicrophoneDisabled
	c.mu.Unlock()

	c.logger.Warn("Microphone marked unavailable")

	if wasEnabled && hook != nil {
		hook()
	}
	return true
}

// ToggleCamera flips the camera flag and returns the new value
func (c *Controller) ToggleCamera() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.CameraEnabled = !c.state.CameraEnabled
	c.logger.Debug("Camera toggled", zap.Bool("enabled", c.state.CameraEnabled))
	return c.state.CameraEnabled
}
