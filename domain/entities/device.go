package entities

// DeviceState holds the local camera and microphone flags
type DeviceState struct {
	CameraEnabled     bool `json:"camera_enabled"`
	MicrophoneEnabled bool `json:"microphone_enabled"`
	// MicrophoneAvailable is false once the recognizer reported that capture
	// is unsupported or denied.
	MicrophoneAvailable bool `json:"microphone_available"`
}

// DefaultDeviceState is the state on mount: both devices on and available
func DefaultDeviceState() DeviceState {
	return DeviceState{
		CameraEnabled:       true,
		MicrophoneEnabled:   true,
		MicrophoneAvailable: true,
	}
}
