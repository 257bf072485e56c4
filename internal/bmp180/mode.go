package bmp180

import (
	"fmt"
	"strings"
	"time"
)

// Oversampling selects the pressure conversion profile. Higher settings
// average more internal samples and take longer.
type Oversampling uint8

const (
	UltraLowPower Oversampling = iota
	Standard
	HighResolution
	UltraHighResolution
)

// Minimum conversion times from the datasheet (4.5, 7.5, 13.5 and 25.5 ms),
// rounded up to whole milliseconds.
var conversionDelay = [...]time.Duration{
	UltraLowPower:       5 * time.Millisecond,
	Standard:            8 * time.Millisecond,
	HighResolution:      14 * time.Millisecond,
	UltraHighResolution: 26 * time.Millisecond,
}

var modeNames = [...]string{
	UltraLowPower:       "ultra-low-power",
	Standard:            "standard",
	HighResolution:      "high-resolution",
	UltraHighResolution: "ultra-high-resolution",
}

// OSS is the oversampling setting, 0 to 3.
func (o Oversampling) OSS() uint8 {
	return uint8(o)
}

// Delay is the minimum time between the pressure command and reading the
// result.
func (o Oversampling) Delay() time.Duration {
	return conversionDelay[o]
}

// Command is the control register value that starts a pressure conversion.
func (o Oversampling) Command() byte {
	return cmdPressure + (uint8(o)<<6)&0xC0
}

func (o Oversampling) valid() bool {
	return o <= UltraHighResolution
}

func (o Oversampling) String() string {
	if !o.valid() {
		return fmt.Sprintf("Oversampling(%d)", uint8(o))
	}

	return modeNames[o]
}

// ParseOversampling accepts a mode name ("standard", "ultra-high-resolution",
// ...) or the bare oss digit.
func ParseOversampling(s string) (Oversampling, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if s == name || s == fmt.Sprint(i) {
			return Oversampling(i), nil
		}
	}

	return 0, fmt.Errorf("unknown oversampling mode %q", s)
}
