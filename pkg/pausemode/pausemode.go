package pausemode

import (
	"context"

	"github.com/edaniels/golog"
)

type Robot interface {
	CancelDrive()
	Halt()
	SetNetMotorSpeed(v float64) error
}

// PauseMode holds every output at zero.
type PauseMode struct {
	Robot Robot
	Log   golog.Logger
}

func New(r Robot, logger golog.Logger) *PauseMode {
	return &PauseMode{Robot: r, Log: logger.Named("pause")}
}

func (t *PauseMode) Name() string {
	return "Pause mode"
}

func (t *PauseMode) Start(ctx context.Context) {
	t.Robot.CancelDrive()
	t.Robot.Halt()
	if err := t.Robot.SetNetMotorSpeed(0); err != nil {
		t.Log.Errorw("failed to stop net motor", "error", err)
	}
}

func (t *PauseMode) Stop() {
}
