package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"

	"github.com/egregors/meep/log"
)

const (
	DefaultGPSDevice = "/dev/serial0"
	DefaultGPSBaud   = 9600

	gpsReadTimeout = 2500 * time.Millisecond
	// gpsMaxSentences bounds how many lines one request may skip while
	// looking for the sentence it needs.
	gpsMaxSentences = 64

	knotsToKPH = 1.852
)

var ErrNoFix = errors.New("sensors: no GPS fix")

// Position is a fix in signed decimal degrees (south and west negative),
// altitude in metres above mean sea level.
type Position struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Velocity is the course over ground in degrees true and the ground speed
// in km/h.
type Velocity struct {
	Time        time.Time
	TrueTrack   float64
	GroundSpeed float64
}

// GPS is an NMEA 0183 receiver on a UART, e.g. the Adafruit Ultimate GPS.
type GPS struct {
	mu  sync.Mutex
	rc  io.ReadCloser
	r   *bufio.Reader
	now func() time.Time
}

func NewGPS(device string, baud int) (*GPS, error) {
	if device == "" {
		device = DefaultGPSDevice
	}
	if baud <= 0 {
		baud = DefaultGPSBaud
	}
	log.Info.Printf("make GPS sensor on %s at %d baud", device, baud)

	p, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud, ReadTimeout: gpsReadTimeout})
	if err != nil {
		return nil, fmt.Errorf("can't open GPS serial port %s: %w", device, err)
	}

	return newGPS(p), nil
}

func newGPS(rc io.ReadCloser) *GPS {
	return &GPS{rc: rc, r: bufio.NewReader(rc), now: time.Now}
}

func (g *GPS) Name() string {
	return "GPS"
}

// CurrentPosition waits for the next GGA sentence with a fix.
func (g *GPS) CurrentPosition(ctx context.Context) (Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.position(ctx)
}

// CurrentVelocity waits for the next VTG sentence, or a valid RMC.
func (g *GPS) CurrentVelocity(ctx context.Context) (Velocity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.velocity(ctx)
}

func (g *GPS) Sample(ctx context.Context) (Reading, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.position(ctx)
	if err != nil {
		return Reading{}, err
	}
	v, err := g.velocity(ctx)
	if err != nil {
		return Reading{}, err
	}

	r := newReading(g.Name())
	r.Values[Latitude] = p.Latitude
	r.Values[Longitude] = p.Longitude
	r.Values[Altitude] = p.Altitude
	r.Values[GroundSpeed] = v.GroundSpeed
	r.Values[Track] = v.TrueTrack

	return r, nil
}

func (g *GPS) Close() error {
	return g.rc.Close()
}

func (g *GPS) position(ctx context.Context) (Position, error) {
	var pos Position
	err := g.scan(ctx, func(s nmea.Sentence) bool {
		gga, ok := s.(nmea.GGA)
		if !ok || gga.FixQuality == nmea.Invalid {
			return false
		}
		pos = Position{
			Time:      g.now(),
			Latitude:  gga.Latitude,
			Longitude: gga.Longitude,
			Altitude:  gga.Altitude,
		}

		return true
	})

	return pos, err
}

func (g *GPS) velocity(ctx context.Context) (Velocity, error) {
	var vel Velocity
	err := g.scan(ctx, func(s nmea.Sentence) bool {
		switch m := s.(type) {
		case nmea.VTG:
			vel = Velocity{Time: g.now(), TrueTrack: m.TrueTrack, GroundSpeed: m.GroundSpeedKPH}
			return true
		case nmea.RMC:
			if m.Validity != nmea.ValidRMC {
				return false
			}
			vel = Velocity{Time: g.now(), TrueTrack: m.Course, GroundSpeed: m.Speed * knotsToKPH}
			return true
		}

		return false
	})

	return vel, err
}

// scan feeds parsed sentences to match until it accepts one. Lines that are
// not NMEA or fail their checksum are skipped.
//
// Must be called with g.mu held.
func (g *GPS) scan(ctx context.Context, match func(nmea.Sentence) bool) error {
	for i := 0; i < gpsMaxSentences; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := g.r.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			return fmt.Errorf("can't read GPS: %w", err)
		}
		if !strings.HasPrefix(line, "$") {
			continue
		}

		s, perr := nmea.Parse(line)
		if perr != nil {
			log.Debg.Printf("skip NMEA line %q: %v", line, perr)
			continue
		}
		if match(s) {
			return nil
		}
	}

	return fmt.Errorf("%w after %d sentences", ErrNoFix, gpsMaxSentences)
}
