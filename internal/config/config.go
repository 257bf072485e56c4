// Package config reads the daemon settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/egregors/meep/internal/bmp180"
	"github.com/egregors/meep/internal/i2cbus"
	"github.com/egregors/meep/internal/sensors"
)

type Config struct {
	Sensor sensors.Config

	PollInterval     time.Duration
	HTTPAddr         string
	MetricsRetention time.Duration

	HapEnabled bool
	HapPin     string
	HapDB      string

	NtfyURL string
	Debug   bool
}

// Load reads files (".env" when none are given) into the environment
// without overriding variables that are already set, then parses it.
// Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("can't load %s: %w", f, err)
		}
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv parses the settings through lookup, applying defaults for unset
// keys.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	c := &Config{
		Sensor: sensors.Config{
			Driver:    e.str("SENSOR_DRIVER", sensors.DriverBMP180),
			Transport: e.str("I2C_TRANSPORT", sensors.TransportD2R2),
			Bus: i2cbus.Config{
				BusID:    e.integer("I2C_BUS", i2cbus.DefaultBus),
				Addr:     uint16(e.integer("I2C_ADDR", bmp180.Address)),
				AddrBits: e.integer("I2C_ADDR_BITS", i2cbus.DefaultAddrBits),
				ClockHz:  e.integer("I2C_CLOCK_HZ", i2cbus.DefaultClockHz),
			},
			DHTPin:    e.str("DHT_PIN", ""),
			GPSDevice: e.str("GPS_DEVICE", sensors.DefaultGPSDevice),
			GPSBaud:   e.integer("GPS_BAUD", sensors.DefaultGPSBaud),
		},
		PollInterval:     e.duration("POLL_INTERVAL", 5*time.Second),
		HTTPAddr:         e.str("HTTP_ADDR", ":80"),
		MetricsRetention: e.duration("METRICS_RETENTION", 30*24*time.Hour),
		HapEnabled:       e.boolean("HAP_ENABLED", true),
		HapPin:           e.str("HAP_PIN", ""),
		HapDB:            e.str("HAP_DB", "./db"),
		NtfyURL:          e.str("NTFY_URL", ""),
		Debug:            e.boolean("LOG_DEBUG", false),
	}

	mode, err := bmp180.ParseOversampling(e.str("BMP180_MODE", bmp180.Standard.String()))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("BMP180_MODE: %w", err))
	}
	c.Sensor.Mode = mode

	if c.PollInterval <= 0 {
		e.errs = append(e.errs, fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval))
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}

	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	// base 0 accepts 0x77 as well as 119
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}

	return int(n)
}

func (e *env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}

	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}

	return d
}
