package pose

import (
	"testing"

	"go.viam.com/test"
)

func TestInRangeIsOpenInterval(t *testing.T) {
	test.That(t, InRange(1.0, 1.0, 0.05), test.ShouldBeTrue)
	test.That(t, InRange(1.04, 1.0, 0.05), test.ShouldBeTrue)
	test.That(t, InRange(0.96, 1.0, 0.05), test.ShouldBeTrue)
	test.That(t, InRange(1.5, 1.0, 0.5), test.ShouldBeFalse)
	test.That(t, InRange(0.5, 1.0, 0.5), test.ShouldBeFalse)
	test.That(t, InRange(2, 1.0, 0.05), test.ShouldBeFalse)
}

func TestWithin(t *testing.T) {
	target := Pose{X: 1, Y: 2, Heading: 0.5}
	test.That(t, Pose{X: 1.01, Y: 1.99, Heading: 0.51}.Within(target, 0.05, 0.02), test.ShouldBeTrue)
	test.That(t, Pose{X: 1.01, Y: 1.99, Heading: 0.53}.Within(target, 0.05, 0.02), test.ShouldBeFalse)
	test.That(t, Pose{X: 1.1, Y: 2, Heading: 0.5}.Within(target, 0.05, 0.02), test.ShouldBeFalse)
	test.That(t, Pose{X: 1, Y: 1.9, Heading: 0.5}.Within(target, 0.05, 0.02), test.ShouldBeFalse)
}

func TestOffset(t *testing.T) {
	d := Pose{X: 1, Y: 1}.Offset(Pose{X: 3, Y: -1})
	test.That(t, d.X, test.ShouldEqual, 2.0)
	test.That(t, d.Y, test.ShouldEqual, -2.0)
}
