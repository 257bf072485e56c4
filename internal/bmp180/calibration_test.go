package bmp180

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCalibrationReference(t *testing.T) {
	cal, err := decodeCalibration(refCalibrationBytes)
	require.NoError(t, err)

	assert.Equal(t, Calibration{
		AC1: 408, AC2: -72, AC3: -14383,
		AC4: 32741, AC5: 32757, AC6: 23153,
		B1: 6190, B2: 4, MB: -32768, MC: -8711, MD: 2868,
	}, cal)
}

func TestDecodeCalibrationUnsignedWords(t *testing.T) {
	b := append([]byte(nil), refCalibrationBytes...)
	copy(b[6:12], []byte{0x80, 0x01, 0xC0, 0x00, 0xFF, 0xFE})
	copy(b[0:2], []byte{0x80, 0x01})

	cal, err := decodeCalibration(b)
	require.NoError(t, err)

	assert.Equal(t, uint16(32769), cal.AC4)
	assert.Equal(t, uint16(49152), cal.AC5)
	assert.Equal(t, uint16(65534), cal.AC6)
	// the same bit pattern is negative in a signed slot
	assert.Equal(t, int16(-32767), cal.AC1)
}

func TestDecodeCalibrationRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		data func() []byte
	}{
		{
			name: "short",
			data: func() []byte { return refCalibrationBytes[:21] },
		},
		{
			name: "all zero word",
			data: func() []byte {
				b := append([]byte(nil), refCalibrationBytes...)
				b[14], b[15] = 0, 0
				return b
			},
		},
		{
			name: "all ones word",
			data: func() []byte {
				b := append([]byte(nil), refCalibrationBytes...)
				b[20], b[21] = 0xFF, 0xFF
				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := decodeCalibration(tt.data())
			assert.ErrorIs(t, err, ErrInvalidCalibration)
			assert.Zero(t, cal)
		})
	}
}

func TestLoadCalibration(t *testing.T) {
	bus := newFakeBus()

	cal, err := LoadCalibration(bus)
	require.NoError(t, err)
	assert.Equal(t, uint16(23153), cal.AC6)
	assert.Equal(t, []string{"r AA 22"}, bus.ops)
}
