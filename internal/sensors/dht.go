package sensors

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MichaelS11/go-dht"
)

const dhtRetries = 11

var dhtHostInit = sync.OnceValue(dht.HostInit)

// DHT is a one-wire DHT11/DHT22 humidity and temperature sensor on a GPIO
// pin, e.g. "GPIO4".
type DHT struct {
	kind string
	dht  *dht.DHT
}

func NewDHT(kind, pin string) (*DHT, error) {
	if pin == "" {
		return nil, fmt.Errorf("%s needs a GPIO pin", kind)
	}
	if err := dhtHostInit(); err != nil {
		return nil, fmt.Errorf("can't init GPIO host: %w", err)
	}

	d, err := dht.NewDHT(pin, dht.Celsius, kind)
	if err != nil {
		return nil, fmt.Errorf("can't set up %s on %s: %w", kind, pin, err)
	}

	return &DHT{kind: kind, dht: d}, nil
}

func (d *DHT) Name() string {
	return strings.ToUpper(d.kind)
}

func (d *DHT) CurrentTemperature(ctx context.Context) (float64, error) {
	r, err := d.Sample(ctx)
	if err != nil {
		return 0, err
	}

	return r.Values[Temperature], nil
}

func (d *DHT) CurrentHumidity(ctx context.Context) (float64, error) {
	r, err := d.Sample(ctx)
	if err != nil {
		return 0, err
	}

	return r.Values[Humidity], nil
}

// Sample reads both values from one pulse train, retrying checksum errors.
func (d *DHT) Sample(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	h, t, err := d.dht.ReadRetry(dhtRetries)
	if err != nil {
		return Reading{}, fmt.Errorf("can't read %s: %w", d.Name(), err)
	}

	r := newReading(d.Name())
	r.Values[Temperature] = t
	r.Values[Humidity] = h

	return r, nil
}

func (d *DHT) Close() error {
	return nil
}
