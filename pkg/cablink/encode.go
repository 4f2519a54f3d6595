package cablink

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a message into a frame payload. The result still needs
// EncodeFrame before transmission.
//
// Encoding is the byte-exact inverse of Decode for every variant.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Heartbeat:
		return []byte{MsgHeartbeat}, nil

	case Identity:
		if len(v.Name) > 255 {
			return nil, fmt.Errorf("%w: identity name %d bytes (max 255)", ErrInvalidMessage, len(v.Name))
		}
		out := make([]byte, 0, 3+len(v.Name))
		out = append(out, MsgIdentity, v.Version, uint8(len(v.Name)))
		return append(out, v.Name...), nil

	case InputValue:
		out := make([]byte, 4)
		out[0] = MsgInputValue
		out[1] = v.Pin
		binary.LittleEndian.PutUint16(out[2:], v.Value)
		return out, nil

	case RetryCalibration:
		return []byte{MsgRetryCalibration, v.Pin}, nil

	case CalibrationError:
		return []byte{MsgCalibrationError, v.Pin}, nil

	case EncoderError:
		return []byte{MsgEncoderError, v.Pin}, nil

	case ConfigureAnalog:
		out := appendConfigureHeader(v.ConfigureHeader, InputTypeAnalog)
		return append(out, v.Pin, v.Smoothing), nil

	case ConfigureButton:
		out := appendConfigureHeader(v.ConfigureHeader, InputTypeButton)
		return append(out, v.Pin, boolByte(v.PullUp)), nil

	case ConfigureMatrix:
		if len(v.RowPins) > 255 || len(v.ColPins) > 255 {
			return nil, fmt.Errorf("%w: matrix dimensions %dx%d (max 255)", ErrInvalidMessage, len(v.RowPins), len(v.ColPins))
		}
		out := appendConfigureHeader(v.ConfigureHeader, InputTypeMatrix)
		out = append(out, uint8(len(v.RowPins)), uint8(len(v.ColPins)))
		out = append(out, v.RowPins...)
		return append(out, v.ColPins...), nil

	case ConfigureMotorLever:
		out := appendConfigureHeader(v.ConfigureHeader, InputTypeMotorLever)
		return append(out,
			v.PhaseA, v.PhaseB, v.PhaseC,
			v.EnableA, v.EnableB, v.EncoderCS,
			v.PolePairs, v.Voltage, v.CurrentLimit, v.EncoderBits), nil

	case LoadBLDCProfile:
		if len(v.Detents) > 255 || len(v.Ranges) > 255 {
			return nil, fmt.Errorf("%w: profile with %d detents, %d ranges (max 255)", ErrInvalidMessage, len(v.Detents), len(v.Ranges))
		}
		out := make([]byte, 0, 4+len(v.Detents)*detentSize+len(v.Ranges)*rangeSize)
		out = append(out, MsgLoadBLDCProfile, v.Pin, uint8(len(v.Detents)), uint8(len(v.Ranges)))
		for _, d := range v.Detents {
			out = append(out, d.Position, d.Engagement, d.Hold, d.Exit, d.SpringBack)
		}
		for _, r := range v.Ranges {
			out = append(out, r.StartDetent, r.EndDetent, r.Damping)
		}
		return out, nil

	case DeactivateBLDCProfile:
		return []byte{MsgDeactivateBLDCProfile, v.Pin}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessageType, m)
	}
}

func appendConfigureHeader(h ConfigureHeader, inputType byte) []byte {
	out := make([]byte, 1+configureHeaderSize, 1+configureHeaderSize+motorLeverConfigSize)
	out[0] = MsgConfigure
	binary.LittleEndian.PutUint16(out[1:], h.MessageID)
	binary.LittleEndian.PutUint16(out[3:], h.TotalParts)
	binary.LittleEndian.PutUint16(out[5:], h.PartNumber)
	out[7] = inputType
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
