package tunable

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
)

// Tunable is a float parameter adjusted live from the joystick in steps,
// within [Min, Max].
type Tunable struct {
	// First for 64-bit alignment on 32-bit ARM.
	bits uint64

	Name     string
	Step     float64
	Min, Max float64
	OnChange func(v float64)
}

func (t *Tunable) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.bits))
}

func (t *Tunable) Set(v float64) {
	if v < t.Min {
		v = t.Min
	} else if v > t.Max {
		v = t.Max
	}
	atomic.StoreUint64(&t.bits, math.Float64bits(v))
	if t.OnChange != nil {
		t.OnChange(v)
	}
}

// Add moves the value by steps increments.
func (t *Tunable) Add(steps int) float64 {
	t.Set(t.Get() + float64(steps)*t.Step)
	return t.Get()
}

type Tunables struct {
	Log golog.Logger

	lock     sync.Mutex
	all      []*Tunable
	selected int
}

func (t *Tunables) Create(name string, value, step, min, max float64, onChange func(float64)) *Tunable {
	newTunable := &Tunable{
		Name:     name,
		Step:     step,
		Min:      min,
		Max:      max,
		OnChange: onChange,
	}
	newTunable.Set(value)

	t.lock.Lock()
	defer t.lock.Unlock()
	t.all = append(t.all, newTunable)
	return newTunable
}

func (t *Tunables) All() []*Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]*Tunable(nil), t.all...)
}

func (t *Tunables) SelectNext() *Tunable {
	t.lock.Lock()
	t.selected++
	if t.selected >= len(t.all) {
		t.selected = 0
	}
	t.lock.Unlock()
	return t.announce()
}

func (t *Tunables) SelectPrev() *Tunable {
	t.lock.Lock()
	t.selected--
	if t.selected < 0 {
		t.selected = len(t.all) - 1
	}
	t.lock.Unlock()
	return t.announce()
}

func (t *Tunables) announce() *Tunable {
	cur := t.Current()
	if cur != nil && t.Log != nil {
		t.Log.Infow("tunable selected", "name", cur.Name, "value", cur.Get())
	}
	return cur
}

// Current returns the selected tunable, or nil if none have been created.
func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.all) == 0 {
		return nil
	}
	return t.all[t.selected]
}

// AdjustCurrent steps the selected tunable.
func (t *Tunables) AdjustCurrent(steps int) {
	cur := t.Current()
	if cur == nil {
		return
	}
	v := cur.Add(steps)
	if t.Log != nil {
		t.Log.Infow("tunable", "name", cur.Name, "value", v)
	}
}
