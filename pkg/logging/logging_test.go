package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestLevels(t *testing.T) {
	logger, err := New("jeff", "warn")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.WarnLevel), test.ShouldBeTrue)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.InfoLevel), test.ShouldBeFalse)

	logger, err = New("jeff", "debug")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel), test.ShouldBeTrue)

	logger, err = New("jeff", "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger, test.ShouldNotBeNil)

	_, err = New("jeff", "chatty")
	test.That(t, err, test.ShouldNotBeNil)
}
