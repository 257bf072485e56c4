package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/d2r2/go-logger"

	"github.com/egregors/meep/internal/config"
	"github.com/egregors/meep/internal/homekit"
	"github.com/egregors/meep/internal/metrics"
	"github.com/egregors/meep/internal/notifier"
	"github.com/egregors/meep/internal/sensors"
	"github.com/egregors/meep/log"
	"github.com/egregors/meep/srv"
)

var revision = "HEAD"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Erro.Printf("can't load config: %s", err.Error())
		os.Exit(1)
	}

	setupLogger(cfg.Debug)
	log.Info.Printf("🌡 revision: %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	sensor := makeSensor(ctx, cfg)
	m := metrics.New(metrics.WithRetention(cfg.MetricsRetention))

	server := srv.New(sensor, makeHkSrv(cfg, sensor.Name()), m,
		srv.WithAddr(cfg.HTTPAddr),
		srv.WithPollInterval(cfg.PollInterval),
		srv.WithExporter(metrics.NewProm(sensor.Name())),
		srv.WithNotifier(makeNotifier(cfg)),
	)

	go graceful(cancel)

	err = server.Run(ctx)
	shutdown(sensor, m)
	if err != nil {
		log.Erro.Printf("can't run server: %s", err.Error())
		os.Exit(1)
	}

	log.Info.Println("bye")
}

func graceful(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	log.Info.Println("server shutdown...")

	signal.Stop(c)

	log.Info.Println("ctx cancel")
	cancel()
}

func shutdown(sensor sensors.Sensor, m *metrics.InMem) {
	if err := sensor.Close(); err != nil {
		log.Erro.Printf("can't close %s: %s", sensor.Name(), err.Error())
	}
	m.Close()
}

func makeSensor(ctx context.Context, cfg *config.Config) sensors.Sensor {
	sc := cfg.Sensor
	sc.Logger = log.Leveled{Prefix: sc.Driver + ": "}

	// calibration waits for the sensor to settle, don't hang forever on a dead bus
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	sensor, err := sensors.New(openCtx, sc)
	cancel()
	if err != nil {
		log.Erro.Printf("can't create %s sensor: %s", sc.Driver, err.Error())
		os.Exit(1)
	}

	return sensor
}

func makeNotifier(cfg *config.Config) srv.Notifier {
	if cfg.NtfyURL == "" {
		return notifier.NewNoop()
	}

	return notifier.NewNtfy(cfg.NtfyURL)
}

func makeHkSrv(cfg *config.Config, model string) srv.HapServer {
	if !cfg.HapEnabled {
		log.Info.Println("HAP disabled")
		return homekit.NoopHap{}
	}

	opts := &homekit.HapSrvOpts{
		DB:  hap.NewFsStore(cfg.HapDB),
		Pin: cfg.HapPin,
		Bridge: accessory.NewBridge(accessory.Info{
			Name:         "Raspberry Pi",
			SerialNumber: "-",
			Manufacturer: "Raspberry Pi",
			Model:        "-",
			Firmware:     revision,
		}),
		Thermometer: accessory.NewTemperatureSensor(accessory.Info{
			Name:         "Temperature",
			SerialNumber: "-",
			Manufacturer: "meep",
			Model:        model,
			Firmware:     revision,
		}),
	}
	if d := strings.ToLower(cfg.Sensor.Driver); d == sensors.DriverBME280 || strings.HasPrefix(d, "dht") {
		opts.Humidifier = accessory.NewHumidifier(accessory.Info{
			Name:         "Humidity",
			SerialNumber: "-",
			Manufacturer: "meep",
			Model:        model,
			Firmware:     revision,
		})
	}

	hk, err := homekit.NewHapSrv(opts)
	if err != nil {
		log.Erro.Printf("can't create HAP server: %s", err.Error())
		os.Exit(1)
	}

	return hk
}

func setupLogger(debug bool) {
	lvl := logger.InfoLevel
	if debug {
		lvl = logger.DebugLevel
	} else {
		log.Debg.Off()
	}

	// third-party drivers only, ours log through log.Leveled
	for _, pkg := range []string{"i2c", "bsbmp"} {
		if err := logger.ChangePackageLogLevel(pkg, lvl); err != nil {
			log.Erro.Printf("can't setup %s logger to %v: %s", pkg, lvl, err.Error())
		}
	}
}
