package main

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/team6063/jeff/pkg/config"
	"github.com/team6063/jeff/pkg/hardware"
	"github.com/team6063/jeff/pkg/logging"
	"github.com/team6063/jeff/pkg/pose"
	"github.com/team6063/jeff/pkg/robot"
)

var Flags struct {
	Config   string `help:"Path to the YAML config file." default:"/cfg/jeff.yaml" type:"path"`
	LogLevel string `help:"Log level." default:"info"`
	Real     bool   `help:"Use the real hardware instead of the simulator."`
}

var CLI struct {
	Quit   QuitCmd   `cmd:"" help:"Quit."`
	Drive  DriveCmd  `cmd:"" help:"Drive to a pose (metres, degrees)."`
	Turn   TurnCmd   `cmd:"" help:"Set only the target heading (degrees). Steering ignores heading, so from the target position this drives straight off and times out."`
	Speeds SpeedsCmd `cmd:"" help:"Set raw wheel speeds in [-1, 1]."`
	Stop   StopCmd   `cmd:"" help:"Stop the drive."`
	Bucket BucketCmd `cmd:"" help:"Toggle the bucket."`
	Net    NetCmd    `cmd:"" help:"Run the net motor."`
	Pose   PoseCmd   `cmd:"" help:"Print the tracked pose."`
	Reset  ResetCmd  `cmd:"" help:"Reset the tracked pose to the origin."`
	Factor FactorCmd `cmd:"" help:"Set the steering angle factor."`
}

type Context struct {
	robot *robot.Robot
}

var Quit = errors.New("Quit")

type QuitCmd struct{}

func (q *QuitCmd) Run(ctx *Context) error {
	return Quit
}

type DriveCmd struct {
	X       float64       `arg:"" help:"Target X."`
	Y       float64       `arg:"" help:"Target Y."`
	Heading float64       `arg:"" optional:"" help:"Target heading in degrees."`
	Wait    time.Duration `help:"Wait up to this long for arrival." default:"10s"`
}

func (c *DriveCmd) Run(ctx *Context) error {
	ctx.robot.DriveTo(c.X, c.Y, c.Heading*math.Pi/180)
	return waitForArrival(ctx.robot, c.Wait)
}

type TurnCmd struct {
	Heading float64       `arg:"" help:"Target heading in degrees."`
	Wait    time.Duration `help:"Wait up to this long for arrival." default:"5s"`
}

func (c *TurnCmd) Run(ctx *Context) error {
	ctx.robot.DriveToAngle(c.Heading * math.Pi / 180)
	return waitForArrival(ctx.robot, c.Wait)
}

func waitForArrival(r *robot.Robot, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for r.IsBusy() {
		if time.Now().After(deadline) {
			r.CancelDrive()
			r.Halt()
			return errors.Errorf("not there after %v", timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
	r.Halt()
	printPose(r)
	return nil
}

type SpeedsCmd struct {
	Left     float64 `arg:"" help:"Left wheel speed."`
	Right    float64 `arg:"" help:"Right wheel speed."`
	OpenLoop bool    `help:"Bypass the velocity PID."`
}

func (c *SpeedsCmd) Run(ctx *Context) error {
	ctx.robot.SetMotorSpeeds(c.Left, c.Right, !c.OpenLoop)
	return nil
}

type StopCmd struct{}

func (c *StopCmd) Run(ctx *Context) error {
	ctx.robot.Halt()
	return ctx.robot.SetNetMotorSpeed(0)
}

type BucketCmd struct{}

func (c *BucketCmd) Run(ctx *Context) error {
	if err := ctx.robot.ToggleBucket(); err != nil {
		return err
	}
	fmt.Println("Bucket extended:", ctx.robot.BucketExtended())
	return nil
}

type NetCmd struct {
	Speed    float64 `arg:"" help:"Net speed in [-1, 1], scaled by the max speed."`
	MaxSpeed float64 `help:"Change the max speed first." default:"-1"`
}

func (c *NetCmd) Run(ctx *Context) error {
	if c.MaxSpeed >= 0 {
		ctx.robot.SetMaxNetSpeed(c.MaxSpeed)
	}
	return ctx.robot.SetNetMotorSpeed(c.Speed)
}

type PoseCmd struct{}

func (c *PoseCmd) Run(ctx *Context) error {
	printPose(ctx.robot)
	return nil
}

type ResetCmd struct{}

func (c *ResetCmd) Run(ctx *Context) error {
	ctx.robot.ResetPose(pose.Pose{})
	return nil
}

type FactorCmd struct {
	Factor float64 `arg:""`
}

func (c *FactorCmd) Run(ctx *Context) error {
	ctx.robot.SetAngleFactor(c.Factor)
	return nil
}

func printPose(r *robot.Robot) {
	p := r.Pose()
	fmt.Printf("x=%.3f y=%.3f heading=%.1f° busy=%v\n", p.X, p.Y, r.HeadingDegrees(), r.IsBusy())
	if hw := r.Hardware(); hw.Sim != nil {
		t := hw.Sim.TruePose()
		fmt.Printf("sim truth: x=%.3f y=%.3f heading=%.1f°\n", t.X, t.Y, t.Heading*180/math.Pi)
	}
}

func main() {
	kong.Parse(&Flags, kong.Description("Interactive drive test shell."))

	fmt.Println("---- drivetest ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	logger, err := logging.New("drivetest", Flags.LogLevel)
	if err != nil {
		panic(err)
	}
	cfg, err := config.Load(Flags.Config, logger)
	if err != nil {
		logger.Fatalw("failed to load config", "error", err)
	}
	if !Flags.Real {
		cfg.Hardware.Backend = "sim"
	}

	k, err := kong.New(&CLI, kong.Name(""), kong.Exit(func(int) {}))
	if err != nil {
		panic(err)
	}

	background, cancel := context.WithCancel(context.Background())
	defer cancel()

	hw, err := hardware.New(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open hardware", "error", err)
	}
	defer hw.Shutdown()
	if err := hw.Start(background, true); err != nil {
		logger.Errorw("failed to start hardware", "error", err)
		return
	}
	r, err := robot.New(cfg, hw, logger)
	if err != nil {
		logger.Errorw("failed to build robot", "error", err)
		return
	}
	r.Start(background)
	defer r.Stop()

	ctx := &Context{robot: r}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("Enter a command:")
		if !scanner.Scan() {
			break
		}
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		parsed, err := k.Parse(strings.Fields(command))
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		err = parsed.Run(ctx)
		if err == Quit {
			break
		} else if err != nil {
			fmt.Println("ERROR:", err)
			continue
		}
	}
}
