// Package sensors exposes board sensors through small capability
// interfaces: every sensor has a name and a lifecycle, and adds one or more
// measurement capabilities on top.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/egregors/meep/internal/bmp180"
	"github.com/egregors/meep/internal/i2cbus"
)

// Sensor is the lifecycle every sensor shares.
type Sensor interface {
	Name() string
	Close() error
}

type TemperatureSensor interface {
	Sensor
	// CurrentTemperature returns °C.
	CurrentTemperature(ctx context.Context) (float64, error)
}

type BarometricSensor interface {
	Sensor
	// CurrentPressure returns hPa.
	CurrentPressure(ctx context.Context) (float64, error)
}

type HumiditySensor interface {
	Sensor
	// CurrentHumidity returns %RH.
	CurrentHumidity(ctx context.Context) (float64, error)
}

// GPSSensor reports where the board is and how it moves.
type GPSSensor interface {
	Sensor
	CurrentPosition(ctx context.Context) (Position, error)
	CurrentVelocity(ctx context.Context) (Velocity, error)
}

// Sampler reads every capability of a sensor in one go.
type Sampler interface {
	Sample(ctx context.Context) (Reading, error)
}

type Quantity string

const (
	Temperature Quantity = "temperature"
	Pressure    Quantity = "pressure"
	Humidity    Quantity = "humidity"

	Latitude    Quantity = "latitude"
	Longitude   Quantity = "longitude"
	Altitude    Quantity = "altitude"
	GroundSpeed Quantity = "ground_speed"
	Track       Quantity = "track"
)

// Reading is one poll of a sensor.
type Reading struct {
	Sensor string
	Values map[Quantity]float64
	Time   time.Time
}

func newReading(name string) Reading {
	return Reading{
		Sensor: name,
		Values: make(map[Quantity]float64, 3),
		Time:   time.Now(),
	}
}

var ErrUnsupported = errors.New("sensors: quantity not supported by this sensor")

// Read polls s. Samplers are read in one call, other sensors capability by
// capability, one after the other.
func Read(ctx context.Context, s Sensor) (Reading, error) {
	if sm, ok := s.(Sampler); ok {
		return sm.Sample(ctx)
	}

	r := newReading(s.Name())
	if ts, ok := s.(TemperatureSensor); ok {
		v, err := ts.CurrentTemperature(ctx)
		if err != nil {
			return Reading{}, fmt.Errorf("can't read %s temperature: %w", s.Name(), err)
		}
		r.Values[Temperature] = v
	}
	if bs, ok := s.(BarometricSensor); ok {
		v, err := bs.CurrentPressure(ctx)
		if err != nil {
			return Reading{}, fmt.Errorf("can't read %s pressure: %w", s.Name(), err)
		}
		r.Values[Pressure] = v
	}
	if hs, ok := s.(HumiditySensor); ok {
		v, err := hs.CurrentHumidity(ctx)
		if err != nil {
			return Reading{}, fmt.Errorf("can't read %s humidity: %w", s.Name(), err)
		}
		r.Values[Humidity] = v
	}
	if gs, ok := s.(GPSSensor); ok {
		p, err := gs.CurrentPosition(ctx)
		if err != nil {
			return Reading{}, fmt.Errorf("can't read %s position: %w", s.Name(), err)
		}
		v, err := gs.CurrentVelocity(ctx)
		if err != nil {
			return Reading{}, fmt.Errorf("can't read %s velocity: %w", s.Name(), err)
		}
		r.Values[Latitude] = p.Latitude
		r.Values[Longitude] = p.Longitude
		r.Values[Altitude] = p.Altitude
		r.Values[GroundSpeed] = v.GroundSpeed
		r.Values[Track] = v.TrueTrack
	}
	if len(r.Values) == 0 {
		return Reading{}, fmt.Errorf("%s: %w", s.Name(), ErrUnsupported)
	}

	return r, nil
}

const (
	DriverBMP180 = "bmp180"
	DriverBMP280 = "bmp280"
	DriverBME280 = "bme280"
	DriverDHT11  = "dht11"
	DriverDHT22  = "dht22"
	DriverGPS    = "gps"
	DriverMock   = "mock"

	TransportD2R2   = "d2r2"
	TransportPeriph = "periph"
)

// Config selects and sets up a sensor driver.
type Config struct {
	Driver    string
	Transport string
	Bus       i2cbus.Config
	Mode      bmp180.Oversampling
	DHTPin    string
	GPSDevice string
	GPSBaud   int
	// Logger receives driver diagnostics. Nil keeps the package loggers.
	Logger bmp180.Logger
}

func (c Config) dialer() (i2cbus.Dialer, error) {
	switch c.Transport {
	case "", TransportD2R2:
		return i2cbus.DialD2R2, nil
	case TransportPeriph:
		return i2cbus.DialPeriph, nil
	default:
		return nil, fmt.Errorf("unknown i2c transport %q", c.Transport)
	}
}

// New builds the sensor cfg.Driver names.
func New(ctx context.Context, cfg Config) (Sensor, error) {
	switch cfg.Driver {
	case DriverBMP180:
		return NewBMP180(ctx, cfg)
	case DriverBMP280:
		return NewBoschBMP(KindBMP280, cfg)
	case DriverBME280:
		return NewBoschBMP(KindBME280, cfg)
	case DriverDHT11, DriverDHT22:
		return NewDHT(cfg.Driver, cfg.DHTPin)
	case DriverGPS:
		return NewGPS(cfg.GPSDevice, cfg.GPSBaud)
	case DriverMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}
}
