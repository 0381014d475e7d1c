package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/team6063/jeff/pkg/config"
	"github.com/team6063/jeff/pkg/gyro"
)

var CLI struct {
	Config  string        `help:"Path to the YAML config file." default:"/cfg/jeff.yaml" type:"path"`
	Samples int           `help:"Calibration samples; 0 uses the config value."`
	Drift   time.Duration `help:"How long to integrate after calibration to measure drift." default:"10s"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Calibrates the ADXRS450 gyro and reports its drift. Keep the robot still."))

	fmt.Println("---- Gyro calibration ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	logger := golog.NewDevelopmentLogger("gyrocal")
	cfg, err := config.Load(CLI.Config, logger)
	if err != nil {
		logger.Fatalw("failed to load config", "error", err)
	}
	samples := CLI.Samples
	if samples <= 0 {
		samples = cfg.Hardware.GyroCalibrationSamples
	}

	g, err := gyro.NewADXRS450(cfg.Hardware.SPIDevice, logger)
	if err != nil {
		logger.Fatalw("failed to open gyro", "error", err)
	}
	defer g.Close()

	if err := g.Calibrate(samples); err != nil {
		logger.Fatalw("calibration failed", "error", err)
	}
	fmt.Printf("Offset: %.4f deg/s\n", g.Offset())

	ctx, cancel := context.WithTimeout(context.Background(), CLI.Drift)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go g.Loop(ctx, &wg)
	wg.Wait()

	a, err := g.Angle()
	if err != nil {
		logger.Fatalw("gyro failed while measuring drift", "error", err)
	}
	fmt.Printf("Drift: %.3f deg over %v (%.4f deg/s)\n", a, CLI.Drift, a/CLI.Drift.Seconds())
}
