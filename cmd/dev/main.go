package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d2r2/go-logger"

	"github.com/egregors/meep/internal/config"
	"github.com/egregors/meep/internal/homekit"
	"github.com/egregors/meep/internal/metrics"
	"github.com/egregors/meep/internal/sensors"
	"github.com/egregors/meep/log"
	"github.com/egregors/meep/srv"
)

const (
	metricsRetention = 2 * time.Minute
	devAddr          = ":8080"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Erro.Printf("can't load config: %s", err.Error())
		os.Exit(1)
	}
	setupLogger()

	sensor := makeSensor(cfg)
	m := metrics.New(metrics.WithRetention(metricsRetention))

	server := srv.New(sensor, makeFakeHkSrv(), m,
		srv.WithAddr(devAddr),
		srv.WithPollInterval(cfg.PollInterval),
		srv.WithExporter(metrics.NewProm(sensor.Name())),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go graceful(cancel)

	err = server.Run(ctx)
	_ = sensor.Close()
	m.Close()
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
	cancel()
}

// makeSensor uses the mock unless SENSOR_DRIVER is set explicitly.
func makeSensor(cfg *config.Config) sensors.Sensor {
	sc := cfg.Sensor
	if _, ok := os.LookupEnv("SENSOR_DRIVER"); !ok {
		sc.Driver = sensors.DriverMock
	}
	sc.Logger = log.Leveled{Prefix: sc.Driver + ": "}

	sensor, err := sensors.New(context.Background(), sc)
	if err != nil {
		log.Erro.Printf("can't create %s sensor: %s", sc.Driver, err.Error())
		os.Exit(1)
	}

	return sensor
}

func makeFakeHkSrv() homekit.NoopHap {
	return homekit.NoopHap{}
}

func setupLogger() {
	for _, pkg := range []string{"i2c", "bsbmp"} {
		if err := logger.ChangePackageLogLevel(pkg, logger.DebugLevel); err != nil {
			log.Erro.Printf("can't setup %s logger to DEBUG: %s", pkg, err.Error())
		}
	}
}
