package sim

import "sync"

// PWMOutput records raw PWM levels, standing in for a PCA9685 port.
type PWMOutput struct {
	lock   sync.Mutex
	levels []uint16
}

func (p *PWMOutput) SetRaw(v uint16) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.levels = append(p.levels, v)
	return nil
}

func (p *PWMOutput) Levels() []uint16 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]uint16(nil), p.levels...)
}

// MotorOutput records the last command sent to a motor with no physics
// behind it.
type MotorOutput struct {
	lock sync.Mutex
	last float64
	n    int
}

func (m *MotorOutput) Set(v float64) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.last = v
	m.n++
	return nil
}

func (m *MotorOutput) Last() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.last
}

func (m *MotorOutput) Writes() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.n
}
