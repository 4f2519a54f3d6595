// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cablink

import (
	"encoding/binary"
	"fmt"
)

// decodeTable maps discriminator byte to decode routine. New variants are
// added here, not in caller branches.
var decodeTable = map[byte]func([]byte) (Message, error){
	MsgHeartbeat:             decodeHeartbeat,
	MsgIdentity:              decodeIdentity,
	MsgConfigure:             decodeConfigure,
	MsgInputValue:            decodeInputValue,
	MsgRetryCalibration:      decodePin(func(pin uint8) Message { return RetryCalibration{Pin: pin} }),
	MsgCalibrationError:      decodePin(func(pin uint8) Message { return CalibrationError{Pin: pin} }),
	MsgEncoderError:          decodePin(func(pin uint8) Message { return EncoderError{Pin: pin} }),
	MsgLoadBLDCProfile:       decodeLoadBLDCProfile,
	MsgDeactivateBLDCProfile: decodePin(func(pin uint8) Message { return DeactivateBLDCProfile{Pin: pin} }),
}

// Decode interprets a reassembled frame payload as a wire message.
//
// It fails with ErrInvalidMessage when fewer bytes remain than the selected
// variant requires, and with ErrUnknownMessageType when the discriminator
// (or, for Configure, the input-type byte) is not recognized.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidMessage)
	}

	decode, ok := decodeTable[payload[0]]
	if !ok {
		return nil, fmt.Errorf("%w: discriminator 0x%02X", ErrUnknownMessageType, payload[0])
	}

	return decode(payload[1:])
}

func decodeHeartbeat(body []byte) (Message, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: heartbeat with %d payload bytes", ErrInvalidMessage, len(body))
	}
	return Heartbeat{}, nil
}

func decodeIdentity(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: identity needs 2 bytes, have %d", ErrInvalidMessage, len(body))
	}
	nameLen := int(body[1])
	if len(body) < 2+nameLen {
		return nil, fmt.Errorf("%w: identity name needs %d bytes, have %d", ErrInvalidMessage, nameLen, len(body)-2)
	}
	return Identity{Version: body[0], Name: string(body[2 : 2+nameLen])}, nil
}

func decodeInputValue(body []byte) (Message, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: input value needs 3 bytes, have %d", ErrInvalidMessage, len(body))
	}
	return InputValue{Pin: body[0], Value: binary.LittleEndian.Uint16(body[1:3])}, nil
}

// decodePin builds a decode routine for the single-byte {pin} payloads.
func decodePin(build func(pin uint8) Message) func([]byte) (Message, error) {
	return func(body []byte) (Message, error) {
		if len(body) < 1 {
			return nil, fmt.Errorf("%w: missing pin byte", ErrInvalidMessage)
		}
		return build(body[0]), nil
	}
}

func decodeConfigure(body []byte) (Message, error) {
	if len(body) < configureHeaderSize {
		return nil, fmt.Errorf("%w: configure header needs %d bytes, have %d", ErrInvalidMessage, configureHeaderSize, len(body))
	}

	header := ConfigureHeader{
		MessageID:  binary.LittleEndian.Uint16(body[0:2]),
		TotalParts: binary.LittleEndian.Uint16(body[2:4]),
		PartNumber: binary.LittleEndian.Uint16(body[4:6]),
	}
	inputType := body[6]
	rest := body[configureHeaderSize:]

	switch inputType {
	case InputTypeAnalog:
		if len(rest) < analogConfigSize {
			return nil, fmt.Errorf("%w: analog config needs %d bytes, have %d", ErrInvalidMessage, analogConfigSize, len(rest))
		}
		return ConfigureAnalog{ConfigureHeader: header, Pin: rest[0], Smoothing: rest[1]}, nil

	case InputTypeButton:
		if len(rest) < buttonConfigSize {
			return nil, fmt.Errorf("%w: button config needs %d bytes, have %d", ErrInvalidMessage, buttonConfigSize, len(rest))
		}
		return ConfigureButton{ConfigureHeader: header, Pin: rest[0], PullUp: rest[1] != 0}, nil

	case InputTypeMatrix:
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: matrix config needs 2 count bytes, have %d", ErrInvalidMessage, len(rest))
		}
		rows, cols := int(rest[0]), int(rest[1])
		if len(rest) < 2+rows+cols {
			return nil, fmt.Errorf("%w: matrix config needs %d pin bytes, have %d", ErrInvalidMessage, rows+cols, len(rest)-2)
		}
		msg := ConfigureMatrix{ConfigureHeader: header}
		if rows > 0 {
			msg.RowPins = append([]uint8(nil), rest[2:2+rows]...)
		}
		if cols > 0 {
			msg.ColPins = append([]uint8(nil), rest[2+rows:2+rows+cols]...)
		}
		return msg, nil

	case InputTypeMotorLever:
		if len(rest) < motorLeverConfigSize {
			return nil, fmt.Errorf("%w: motor lever config needs %d bytes, have %d", ErrInvalidMessage, motorLeverConfigSize, len(rest))
		}
		return ConfigureMotorLever{
			ConfigureHeader: header,
			PhaseA:          rest[0],
			PhaseB:          rest[1],
			PhaseC:          rest[2],
			EnableA:         rest[3],
			EnableB:         rest[4],
			EncoderCS:       rest[5],
			PolePairs:       rest[6],
			Voltage:         rest[7],
			CurrentLimit:    rest[8],
			EncoderBits:     rest[9],
		}, nil

	default:
		return nil, fmt.Errorf("%w: configure input type 0x%02X", ErrUnknownMessageType, inputType)
	}
}

func decodeLoadBLDCProfile(body []byte) (Message, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: profile header needs 3 bytes, have %d", ErrInvalidMessage, len(body))
	}

	pin := body[0]
	nDetents, nRanges := int(body[1]), int(body[2])
	need := nDetents*detentSize + nRanges*rangeSize
	if len(body) < 3+need {
		return nil, fmt.Errorf("%w: profile needs %d record bytes, have %d", ErrInvalidMessage, need, len(body)-3)
	}

	msg := LoadBLDCProfile{Pin: pin}
	offset := 3
	for i := 0; i < nDetents; i++ {
		msg.Detents = append(msg.Detents, ProfileDetent{
			Position:   body[offset],
			Engagement: body[offset+1],
			Hold:       body[offset+2],
			Exit:       body[offset+3],
			SpringBack: body[offset+4],
		})
		offset += detentSize
	}
	for i := 0; i < nRanges; i++ {
		msg.Ranges = append(msg.Ranges, ProfileRange{
			StartDetent: body[offset],
			EndDetent:   body[offset+1],
			Damping:     body[offset+2],
		})
		offset += rangeSize
	}

	return msg, nil
}
