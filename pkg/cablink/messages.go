// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cablink

// Message is one decoded wire message. The concrete type is selected by the
// discriminator byte; Type returns that byte.
type Message interface {
	Type() byte
}

// Heartbeat is sent periodically by a board to signal liveness. No payload.
type Heartbeat struct{}

func (Heartbeat) Type() byte { return MsgHeartbeat }

// Identity announces a board's protocol version and human-readable name.
// Sent once after the board boots or the host reconnects.
type Identity struct {
	Version uint8
	Name    string
}

func (Identity) Type() byte { return MsgIdentity }

// InputValue reports a raw reading for one pin. For analog inputs the value
// is the raw ADC reading; for buttons it is 0 or 1; for motor-haptic levers
// it is the detent index the lever currently rests in.
type InputValue struct {
	Pin   uint8
	Value uint16
}

func (InputValue) Type() byte { return MsgInputValue }

// RetryCalibration asks the board to rerun calibration for one pin.
type RetryCalibration struct {
	Pin uint8
}

func (RetryCalibration) Type() byte { return MsgRetryCalibration }

// CalibrationError reports that calibration failed for one pin.
type CalibrationError struct {
	Pin uint8
}

func (CalibrationError) Type() byte { return MsgCalibrationError }

// EncoderError reports a fault on a motor-haptic lever's position encoder.
type EncoderError struct {
	Pin uint8
}

func (EncoderError) Type() byte { return MsgEncoderError }

// ConfigureHeader is the fixed leading part of every Configure message.
// Large configurations are split across parts sharing one message id.
type ConfigureHeader struct {
	MessageID  uint16
	TotalParts uint16
	PartNumber uint16
}

// ConfigureAnalog configures a pin as an analog lever input.
type ConfigureAnalog struct {
	ConfigureHeader
	Pin       uint8
	Smoothing uint8 // moving-average window, 0 = raw readings
}

func (ConfigureAnalog) Type() byte { return MsgConfigure }

// InputType returns the Configure sub-type byte.
func (ConfigureAnalog) InputType() byte { return InputTypeAnalog }

// ConfigureButton configures a pin as a binary button input.
type ConfigureButton struct {
	ConfigureHeader
	Pin    uint8
	PullUp bool
}

func (ConfigureButton) Type() byte { return MsgConfigure }

// InputType returns the Configure sub-type byte.
func (ConfigureButton) InputType() byte { return InputTypeButton }

// ConfigureMatrix configures a scanned button matrix. Each crossing reports
// as its own button input; the board assigns pins row-major.
type ConfigureMatrix struct {
	ConfigureHeader
	RowPins []uint8
	ColPins []uint8
}

func (ConfigureMatrix) Type() byte { return MsgConfigure }

// InputType returns the Configure sub-type byte.
func (ConfigureMatrix) InputType() byte { return InputTypeMatrix }

// ConfigureMotorLever configures a BLDC motor-haptic lever. Voltage is in
// 0.1V units and CurrentLimit in 0.1A units, 0 meaning unlimited.
type ConfigureMotorLever struct {
	ConfigureHeader
	PhaseA       uint8
	PhaseB       uint8
	PhaseC       uint8
	EnableA      uint8
	EnableB      uint8
	EncoderCS    uint8
	PolePairs    uint8
	Voltage      uint8
	CurrentLimit uint8
	EncoderBits  uint8
}

func (ConfigureMotorLever) Type() byte { return MsgConfigure }

// InputType returns the Configure sub-type byte.
func (ConfigureMotorLever) InputType() byte { return InputTypeMotorLever }

// ProfileDetent is one haptic stop in a motor-haptic profile. Position is on
// the firmware's 0-100 travel scale.
type ProfileDetent struct {
	Position   uint8
	Engagement uint8
	Hold       uint8
	Exit       uint8
	SpringBack uint8
}

// ProfileRange is one damped travel span between two detents.
type ProfileRange struct {
	StartDetent uint8
	EndDetent   uint8
	Damping     uint8
}

// LoadBLDCProfile installs a haptic profile on a motor-haptic lever.
type LoadBLDCProfile struct {
	Pin     uint8
	Detents []ProfileDetent
	Ranges  []ProfileRange
}

func (LoadBLDCProfile) Type() byte { return MsgLoadBLDCProfile }

// DeactivateBLDCProfile releases the motor on a motor-haptic lever, leaving
// it free-spinning until the next profile load.
type DeactivateBLDCProfile struct {
	Pin uint8
}

func (DeactivateBLDCProfile) Type() byte { return MsgDeactivateBLDCProfile }
