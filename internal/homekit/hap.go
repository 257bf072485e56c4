package homekit

import (
	"context"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"github.com/egregors/meep/log"
)

type HapSrvOpts struct {
	DB  hap.Store
	Pin string

	Bridge      *accessory.Bridge
	Thermometer *accessory.Thermometer
	// Humidifier is optional, for sensors that measure humidity.
	Humidifier *accessory.Humidifier
}

type HapSrv struct {
	srv         *hap.Server
	thermometer *accessory.Thermometer
	humidifier  *accessory.Humidifier
}

func NewHapSrv(hapSrvOpts *HapSrvOpts) (*HapSrv, error) {
	log.Info.Println("make HapSrv")

	// see: https://github.com/brutella/hap/pull/53
	hapSrvOpts.Bridge.A.Id = 1
	hapSrvOpts.Thermometer.A.Id = 2
	as := []*accessory.A{hapSrvOpts.Thermometer.A}
	if hapSrvOpts.Humidifier != nil {
		hapSrvOpts.Humidifier.A.Id = 3
		as = append(as, hapSrvOpts.Humidifier.A)
	}

	s, err := hap.NewServer(hapSrvOpts.DB, hapSrvOpts.Bridge.A, as...)
	if err != nil {
		return nil, err
	}

	if hapSrvOpts.Pin != "" {
		log.Info.Printf("set custom PIN")
		s.Pin = hapSrvOpts.Pin
	}

	return &HapSrv{
		srv:         s,
		thermometer: hapSrvOpts.Thermometer,
		humidifier:  hapSrvOpts.Humidifier,
	}, nil
}

func (s *HapSrv) SetCurrentTemperature(t float64) {
	s.thermometer.TempSensor.CurrentTemperature.SetValue(t)
}

func (s *HapSrv) SetCurrentHumidity(h float64) {
	if s.humidifier == nil {
		return
	}
	s.humidifier.Humidifier.CurrentRelativeHumidity.SetValue(h)
}

func (s *HapSrv) ListenAndServe(ctx context.Context) error {
	return s.srv.ListenAndServe(ctx)
}
