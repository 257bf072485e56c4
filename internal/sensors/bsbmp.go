package sensors

import (
	"context"
	"fmt"

	"github.com/d2r2/go-bsbmp"
	"github.com/d2r2/go-i2c"

	"github.com/egregors/meep/log"
)

// BoschKind is a Bosch chip handled by github.com/d2r2/go-bsbmp.
type BoschKind struct {
	name     string
	typ      bsbmp.SensorType
	humidity bool
}

var (
	KindBMP280 = BoschKind{name: "BMP280", typ: bsbmp.BMP280}
	KindBME280 = BoschKind{name: "BME280", typ: bsbmp.BME280, humidity: true}
)

// BoschBMP is a BMP280 or BME280 read through go-bsbmp. It always uses the
// d2r2 transport, which is what the library is written against.
type BoschBMP struct {
	kind   BoschKind
	conn   *i2c.I2C
	sensor *bsbmp.BMP
}

func NewBoschBMP(kind BoschKind, cfg Config) (*BoschBMP, error) {
	log.Info.Printf("make %s sensor", kind.name)

	// check if your device really has address 0x77 (it could be 0x76)
	// use util: 'i2cdetect -y 1' to find out
	conn, err := i2c.NewI2C(uint8(cfg.Bus.Addr), cfg.Bus.BusID)
	if err != nil {
		return nil, fmt.Errorf("can't open %s: %w", cfg.Bus, err)
	}

	sensor, err := bsbmp.NewBMP(kind.typ, conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("can't set up %s: %w", kind.name, err)
	}

	return &BoschBMP{kind: kind, conn: conn, sensor: sensor}, nil
}

func (b *BoschBMP) Name() string {
	return b.kind.name
}

func (b *BoschBMP) CurrentTemperature(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, err := b.sensor.ReadTemperatureC(bsbmp.ACCURACY_STANDARD)
	if err != nil {
		return 0, err
	}

	return float64(t), nil
}

func (b *BoschBMP) CurrentPressure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, err := b.sensor.ReadPressurePa(bsbmp.ACCURACY_STANDARD)
	if err != nil {
		return 0, err
	}

	return float64(p) / 100, nil
}

// CurrentHumidity is only supported by the BME280.
func (b *BoschBMP) CurrentHumidity(ctx context.Context) (float64, error) {
	if !b.kind.humidity {
		return 0, ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ok, h, err := b.sensor.ReadHumidityRH(bsbmp.ACCURACY_STANDARD)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnsupported
	}

	return float64(h), nil
}

func (b *BoschBMP) Sample(ctx context.Context) (Reading, error) {
	r := newReading(b.Name())

	t, err := b.CurrentTemperature(ctx)
	if err != nil {
		return Reading{}, err
	}
	r.Values[Temperature] = t

	p, err := b.CurrentPressure(ctx)
	if err != nil {
		return Reading{}, err
	}
	r.Values[Pressure] = p

	if b.kind.humidity {
		h, err := b.CurrentHumidity(ctx)
		if err != nil {
			return Reading{}, err
		}
		r.Values[Humidity] = h
	}

	return r, nil
}

func (b *BoschBMP) Close() error {
	return b.conn.Close()
}
