package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/team6063/jeff/pkg/joystick"
	"github.com/team6063/jeff/pkg/teleop"
)

var CLI struct {
	Device string `help:"Joystick device." default:"/dev/input/js0" env:"JOYSTICK_DEVICE"`
}

// Prints joystick events and the wheel speeds teleop would send for them.
func main() {
	kong.Parse(&CLI)
	logger := golog.NewDevelopmentLogger("joytests")

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		cancel()
	}()

	j, err := joystick.NewJoystick(CLI.Device)
	if err != nil {
		logger.Fatalw("failed to open joystick", "error", err)
	}
	defer j.Close()

	events := make(chan *joystick.Event)
	go func() {
		if err := j.Loop(ctx, events, logger); err != nil && ctx.Err() == nil {
			logger.Errorw("joystick failed", "error", err)
		}
	}()

	var x, y, throttle float64
	for e := range events {
		if e.Type == joystick.EventTypeAxis {
			switch e.Number {
			case joystick.AxisX:
				x = e.Float()
			case joystick.AxisY:
				y = e.Float()
			case joystick.AxisThrottle:
				throttle = e.Float()
			}
		}
		l, r := teleop.Mix(x, y, throttle)
		fmt.Printf("%-16s left=%+.2f right=%+.2f\n", e, l, r)
	}
}
