package bmp180

import (
	"fmt"
)

const calibrationLen = 22

// Calibration holds the factory coefficients stored in the device EEPROM.
// AC4, AC5 and AC6 are unsigned words, the rest are signed.
type Calibration struct {
	AC1, AC2, AC3      int16
	AC4, AC5, AC6      uint16
	B1, B2, MB, MC, MD int16
}

// LoadCalibration reads the 22 byte coefficient block in a single
// transaction.
func LoadCalibration(bus RegisterBus) (Calibration, error) {
	buf, err := bus.ReadReg(regCalibration, calibrationLen)
	if err != nil {
		return Calibration{}, fmt.Errorf("can't read calibration: %w", err)
	}

	return decodeCalibration(buf)
}

func decodeCalibration(b []byte) (Calibration, error) {
	if len(b) < calibrationLen {
		return Calibration{}, fmt.Errorf("%w: %d of %d bytes", ErrInvalidCalibration, len(b), calibrationLen)
	}

	// 0x0000 and 0xFFFF mean the EEPROM did not answer.
	for i := 0; i < calibrationLen; i += 2 {
		if w := uword(b[i:]); w == 0x0000 || w == 0xFFFF {
			return Calibration{}, fmt.Errorf("%w: word 0x%04X at reg 0x%02X", ErrInvalidCalibration, w, regCalibration+i)
		}
	}

	return Calibration{
		AC1: sword(b[0:]),
		AC2: sword(b[2:]),
		AC3: sword(b[4:]),
		AC4: uword(b[6:]),
		AC5: uword(b[8:]),
		AC6: uword(b[10:]),
		B1:  sword(b[12:]),
		B2:  sword(b[14:]),
		MB:  sword(b[16:]),
		MC:  sword(b[18:]),
		MD:  sword(b[20:]),
	}, nil
}

func uword(b []byte) uint16 {
	return uint16(b[0])<<8&0xFF00 | uint16(b[1])&0xFF
}

func sword(b []byte) int16 {
	return int16(uword(b))
}
