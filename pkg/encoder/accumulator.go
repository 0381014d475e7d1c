package encoder

// Accumulator turns a pair of free-running 16-bit hardware counters (which wrap
// at ±32768) into monotonic 64-bit counts.
type Accumulator struct {
	doneFirstPoll bool
	lastRawValues [2]int16

	accumulator [2]int64
}

// Poll folds in a new raw reading.  The first poll only establishes the
// baseline.
func (a *Accumulator) Poll(raw [2]int16) {
	if a.doneFirstPoll {
		for side, newC := range raw {
			oldC := a.lastRawValues[side]
			// int16 subtraction wraps, which is exactly the delta we want as
			// long as we poll faster than half a counter revolution.
			delta := newC - oldC
			a.accumulator[side] += int64(delta)
		}
	}

	a.lastRawValues = raw
	a.doneFirstPoll = true
}

func (a *Accumulator) Counts() [2]int64 {
	return a.accumulator
}

func (a *Accumulator) Zero() {
	a.accumulator = [2]int64{}
}
