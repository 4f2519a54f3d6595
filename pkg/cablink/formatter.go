// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cablink

import (
	"fmt"
	"strings"
)

// MessageName returns the protocol name for a discriminator byte.
func MessageName(msgType byte) string {
	switch msgType {
	case MsgHeartbeat:
		return "HEARTBEAT"
	case MsgIdentity:
		return "IDENTITY"
	case MsgConfigure:
		return "CONFIGURE"
	case MsgInputValue:
		return "INPUT_VALUE"
	case MsgRetryCalibration:
		return "RETRY_CALIBRATION"
	case MsgCalibrationError:
		return "CALIBRATION_ERROR"
	case MsgEncoderError:
		return "ENCODER_ERROR"
	case MsgLoadBLDCProfile:
		return "LOAD_BLDC_PROFILE"
	case MsgDeactivateBLDCProfile:
		return "DEACTIVATE_BLDC_PROFILE"
	default:
		return "UNKNOWN"
	}
}

// FormatMessage renders a decoded message in human-readable form for the
// probe and watch commands.
func FormatMessage(m Message) string {
	switch v := m.(type) {
	case Heartbeat:
		return "HEARTBEAT"
	case Identity:
		return fmt.Sprintf("IDENTITY v%d %q", v.Version, v.Name)
	case InputValue:
		return fmt.Sprintf("INPUT_VALUE pin=%d value=%d", v.Pin, v.Value)
	case RetryCalibration:
		return fmt.Sprintf("RETRY_CALIBRATION pin=%d", v.Pin)
	case CalibrationError:
		return fmt.Sprintf("CALIBRATION_ERROR pin=%d", v.Pin)
	case EncoderError:
		return fmt.Sprintf("ENCODER_ERROR pin=%d", v.Pin)
	case ConfigureAnalog:
		return fmt.Sprintf("CONFIGURE analog %s pin=%d smoothing=%d", formatHeader(v.ConfigureHeader), v.Pin, v.Smoothing)
	case ConfigureButton:
		return fmt.Sprintf("CONFIGURE button %s pin=%d pull_up=%t", formatHeader(v.ConfigureHeader), v.Pin, v.PullUp)
	case ConfigureMatrix:
		return fmt.Sprintf("CONFIGURE matrix %s rows=%v cols=%v", formatHeader(v.ConfigureHeader), v.RowPins, v.ColPins)
	case ConfigureMotorLever:
		return fmt.Sprintf("CONFIGURE motor-lever %s phases=[%d %d %d] enable=[%d %d] cs=%d poles=%d voltage=%.1fV limit=%.1fA encoder=%d-bit",
			formatHeader(v.ConfigureHeader),
			v.PhaseA, v.PhaseB, v.PhaseC, v.EnableA, v.EnableB, v.EncoderCS,
			v.PolePairs, float64(v.Voltage)/10, float64(v.CurrentLimit)/10, v.EncoderBits)
	case LoadBLDCProfile:
		var b strings.Builder
		fmt.Fprintf(&b, "LOAD_BLDC_PROFILE pin=%d detents=%d ranges=%d", v.Pin, len(v.Detents), len(v.Ranges))
		for i, d := range v.Detents {
			fmt.Fprintf(&b, "\n  detent %d: pos=%d engage=%d hold=%d exit=%d spring=%d",
				i, d.Position, d.Engagement, d.Hold, d.Exit, d.SpringBack)
		}
		for i, r := range v.Ranges {
			fmt.Fprintf(&b, "\n  range %d: %d->%d damping=%d", i, r.StartDetent, r.EndDetent, r.Damping)
		}
		return b.String()
	case DeactivateBLDCProfile:
		return fmt.Sprintf("DEACTIVATE_BLDC_PROFILE pin=%d", v.Pin)
	default:
		return fmt.Sprintf("UNKNOWN %T", m)
	}
}

func formatHeader(h ConfigureHeader) string {
	return fmt.Sprintf("msg=%d part=%d/%d", h.MessageID, h.PartNumber+1, h.TotalParts)
}
