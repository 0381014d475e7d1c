package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/team6063/jeff/pkg/autonomous"
	"github.com/team6063/jeff/pkg/config"
	"github.com/team6063/jeff/pkg/hardware"
	"github.com/team6063/jeff/pkg/joystick"
	"github.com/team6063/jeff/pkg/logging"
	"github.com/team6063/jeff/pkg/pausemode"
	"github.com/team6063/jeff/pkg/robot"
	"github.com/team6063/jeff/pkg/teleop"
	"github.com/team6063/jeff/pkg/tunable"
)

var CLI struct {
	Config   string `help:"Path to the YAML config file." default:"/cfg/jeff.yaml" type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error). Overrides the config file."`
	Sim      bool   `help:"Drive the simulated drivetrain instead of the real hardware."`
}

type Mode interface {
	Name() string
	Start(ctx context.Context)
	Stop()
}

type JoystickUser interface {
	OnJoystickEvent(event *joystick.Event)
}

func main() {
	kong.Parse(&CLI, kong.Description("Jeff drive controller."))

	fmt.Println("---- Jeff ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	bootLog := golog.NewDevelopmentLogger("controller")
	cfg, err := config.Load(CLI.Config, bootLog)
	if err != nil {
		bootLog.Fatalw("failed to load config", "error", err)
	}
	if CLI.LogLevel != "" {
		cfg.LogLevel = CLI.LogLevel
	}
	if CLI.Sim {
		cfg.Hardware.Backend = "sim"
	}
	logger, err := logging.New("jeff", cfg.LogLevel)
	if err != nil {
		bootLog.Fatalw("bad log level", "error", err)
	}
	if err := cfg.WriteInUse(CLI.Config); err != nil {
		logger.Warnw("failed to write in-use config", "error", err)
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel, logger)

	// Initialise the hardware.
	hw, err := hardware.New(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open hardware", "error", err)
	}
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		if err := hw.Shutdown(); err != nil {
			logger.Errorw("shutdown failed", "error", err)
		}
		time.Sleep(100 * time.Millisecond)
	}()
	if err := hw.Start(ctx, true); err != nil {
		logger.Errorw("failed to start hardware", "error", err)
		return
	}

	jeff, err := robot.New(cfg, hw, logger)
	if err != nil {
		logger.Errorw("failed to build robot", "error", err)
		return
	}
	jeff.Start(ctx)
	defer jeff.Stop()

	tunables := &tunable.Tunables{Log: logger.Named("tunables")}
	tunables.Create("angle factor", jeff.AngleFactor(), 0.1, 0, 5, jeff.SetAngleFactor)
	tunables.Create("net max speed", jeff.MaxNetSpeed(), 0.05, 0, 1, jeff.SetMaxNetSpeed)

	// Wait for the joystick and kick off a background thread to read from it.
	joystickEvents := initJoystick(ctx, cancel, cfg.Joystick.Device, logger)

	allModes := []Mode{
		pausemode.New(jeff, logger),
		teleop.New(jeff, tunables, logger),
		autonomous.New(jeff, cfg.Autonomous, logger),
	}
	activeModeIdx := 0
	activeMode := allModes[activeModeIdx]
	logger.Infof("----- %s -----", activeMode.Name())
	activeMode.Start(ctx)

	switchMode := func(delta int) {
		activeMode.Stop()
		jeff.Halt()
		activeModeIdx = (activeModeIdx + delta + len(allModes)) % len(allModes)
		activeMode = allModes[activeModeIdx]
		logger.Infof("----- %s -----", activeMode.Name())
		activeMode.Start(ctx)
	}

	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("context done, stopping active mode and shutting down")
			activeMode.Stop()
			return
		case event, ok := <-joystickEvents:
			if !ok {
				logger.Error("joystick events channel closed")
				activeMode.Stop()
				cancel()
				return
			}
			if event.Type == joystick.EventTypeButton &&
				event.Number == joystick.ButtonMode &&
				event.Pressed() {
				switchMode(1)
				continue
			}
			// Pass other joystick events through if this mode requires them.
			if ju, ok := activeMode.(JoystickUser); ok {
				done := make(chan struct{})
				go func() {
					defer close(done)
					ju.OnJoystickEvent(event)
				}()
				timeout := time.NewTimer(1 * time.Second)
				select {
				case <-done:
					timeout.Stop()
				case <-timeout.C:
					// Modes only queue the event; blocking this long means a deadlock.
					panic("active mode blocked OnJoystickEvent for >1s")
				}
			}
		case <-watchdog.C:
			p := jeff.Pose()
			logger.Debugw("main loop still running", "mode", activeMode.Name(),
				"x", p.X, "y", p.Y, "heading_deg", jeff.HeadingDegrees(),
				"overruns", jeff.Coordinator().Looper().Overruns())
		}
	}
}

// initJoystick waits for the joystick device to appear and then forwards its
// events until it fails, which cancels ctx.
func initJoystick(ctx context.Context, cancel context.CancelFunc, device string, logger golog.Logger) <-chan *joystick.Event {
	joystickEvents := make(chan *joystick.Event, 1)
	logger = logger.Named("joystick")
	go func() {
		firstLog := true
		for ctx.Err() == nil {
			j, err := joystick.NewJoystick(device)
			if err != nil {
				if firstLog {
					logger.Warnw("waiting for joystick", "device", device, "error", err)
					firstLog = false
				}
				time.Sleep(1 * time.Second)
				continue
			}
			logger.Infow("opened joystick", "device", device)
			defer cancel()
			defer j.Close()
			if err := j.Loop(ctx, joystickEvents, logger); err != nil && ctx.Err() == nil {
				logger.Errorw("joystick failed", "error", err)
			}
			return
		}
	}()
	return joystickEvents
}

func registerSignalHandlers(cancelFunc context.CancelFunc, logger golog.Logger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Infow("signal", "signal", s.String())
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
