package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-yaml/yaml"
)

// MotorCommand is the pair of H-bridge direction inputs. Raise and Lower
// are never both set, both low is the idle/brake state.
type MotorCommand struct {
	Raise bool
	Lower bool
}

var (
	motorIdle  = MotorCommand{}
	motorRaise = MotorCommand{Raise: true}
	motorLower = MotorCommand{Lower: true}
)

// Rig is the hardware boundary: two motor direction outputs and an
// ultrasonic ranger. Sample blocks until the next measurement and returns
// the distance in centimeters, <= 0 when the rig had no usable echo.
type Rig interface {
	Drive(cmd MotorCommand) error
	Sample() float64
}

type Floor int

const (
	Ground Floor = iota
	First
	Second
)

func (f Floor) String() string {
	switch f {
	case Ground:
		return "ground"
	case First:
		return "first"
	case Second:
		return "second"
	}
	return fmt.Sprintf("floor(%d)", int(f))
}

var floorNames = map[string]Floor{
	"ground": Ground,
	"first":  First,
	"second": Second,
}

// Band is the distance window [Low, High) of one floor, measured from
// the ranger at the top of the shaft down to the cab. Reverse selects
// what happens once the cab overshoots to High or past it: drive back
// toward decreasing distance, or brake only. The ground stop cannot be
// approached from below, so its band stays brake-only.
type Band struct {
	Low     float64 `yaml:"low"`
	High    float64 `yaml:"high"`
	Reverse bool    `yaml:"reverse"`
	Status  string  `yaml:"status"`
}

func defaultBands() map[Floor]Band {
	return map[Floor]Band{
		Ground: {Low: 98.5, High: 99.5, Reverse: false, Status: "Lift is at the ground floor"},
		First:  {Low: 71, High: 71.5, Reverse: true, Status: "Lift is at the first floor"},
		Second: {Low: 38, High: 39, Reverse: true, Status: "Lift is at the second floor"},
	}
}

// loadBands reads per-floor band overrides from a YAML file keyed by
// floor name. A floor present in the file replaces its whole default
// entry, absent floors keep the built-in band.
func loadBands(path string) (map[Floor]Band, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw := map[string]Band{}
	if err := yaml.NewDecoder(file).Decode(&raw); err != nil {
		return nil, err
	}

	bands := defaultBands()
	for name, band := range raw {
		floor, ok := floorNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown floor %q in %s", name, path)
		}
		bands[floor] = band
	}

	if err := validateBands(bands); err != nil {
		return nil, err
	}
	return bands, nil
}

func validateBands(bands map[Floor]Band) error {
	ordered := make([]Floor, 0, len(bands))
	for floor, band := range bands {
		if band.Low <= 0 {
			return fmt.Errorf("%s floor: band must start above zero", floor)
		}
		if band.Low >= band.High {
			return fmt.Errorf("%s floor: band low %.1f not under high %.1f", floor, band.Low, band.High)
		}
		ordered = append(ordered, floor)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bands[ordered[i]].Low < bands[ordered[j]].Low
	})
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if bands[prev].High > bands[cur].Low {
			return fmt.Errorf("bands of %s and %s floors overlap", prev, cur)
		}
	}
	return nil
}

type seekState int

const (
	approaching seekState = iota
	arrived
)

func (s seekState) String() string {
	if s == arrived {
		return "arrived"
	}
	return "approaching"
}

// step is one iteration of the seek state machine: classify a sample
// against the band and pick the motor command for it. The ranger hangs at
// the top of the shaft, so lowering the cab increases the distance.
func (b Band) step(distance float64) (MotorCommand, seekState) {
	switch {
	case distance <= 0:
		// ranger noise, hold and wait for the next echo
		return motorIdle, approaching
	case distance < b.Low:
		// cab above the band, drive it down the shaft
		return motorLower, approaching
	case distance >= b.High:
		if b.Reverse {
			return motorRaise, approaching
		}
		// brake-only band, undershoot cannot be driven out
		return motorIdle, approaching
	default:
		return motorIdle, arrived
	}
}

var (
	ErrSeekTimeout  = errors.New("target floor not reached before deadline")
	ErrSeekBusy     = errors.New("another seek is in progress")
	ErrSeekStopped  = errors.New("seek aborted by stop")
	ErrUnknownFloor = errors.New("unknown floor")
)

const offStatus = "Lift is off"

// SeekStatus is the per-iteration progress event published for the SSE
// and multicast consumers.
type SeekStatus struct {
	Floor    string  `json:"floor,omitempty"`
	State    string  `json:"state"`
	Distance float64 `json:"distance"`
}

// Controller owns the seek policy. One seek at a time: a competing Seek
// is refused with ErrSeekBusy, only Stop preempts a running one.
type Controller struct {
	rig     Rig
	bands   map[Floor]Band
	timeout time.Duration
	events  chan<- Event

	busy    sync.Mutex
	stopped atomic.Bool
}

func NewController(rig Rig, bands map[Floor]Band, timeout time.Duration, events chan<- Event) *Controller {
	return &Controller{
		rig:     rig,
		bands:   bands,
		timeout: timeout,
		events:  events,
	}
}

// Seek drives the cab until the ranger reads inside the target band, then
// brakes and reports the floor status. It blocks the caller for the whole
// approach. A zero timeout disables the deadline and the loop runs until
// arrival or Stop.
func (c *Controller) Seek(target Floor) (string, error) {
	band, ok := c.bands[target]
	if !ok {
		return "", ErrUnknownFloor
	}
	if !c.busy.TryLock() {
		return "", ErrSeekBusy
	}
	defer c.busy.Unlock()
	c.stopped.Store(false)

	var deadline <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-deadline:
			c.rig.Drive(motorIdle)
			c.emit(target, "timeout", -1)
			return "", ErrSeekTimeout
		default:
		}

		distance := c.rig.Sample()
		if c.stopped.Load() {
			return "", ErrSeekStopped
		}

		cmd, state := band.step(distance)
		if err := c.rig.Drive(cmd); err != nil {
			c.rig.Drive(motorIdle)
			return "", err
		}
		// a stop landing between the check above and the motor write is
		// overwritten by it, so re-idle before giving up
		if c.stopped.Load() {
			c.rig.Drive(motorIdle)
			return "", ErrSeekStopped
		}
		c.emit(target, state.String(), distance)

		if state == arrived {
			return band.Status, nil
		}
	}
}

// Stop forces both outputs low at once, no seek logic involved. A seek in
// flight observes the flag after its current sample and returns
// ErrSeekStopped.
func (c *Controller) Stop() error {
	c.stopped.Store(true)
	if err := c.rig.Drive(motorIdle); err != nil {
		return err
	}
	if c.events != nil {
		select {
		case c.events <- Event{name: "seek", data: SeekStatus{State: "off", Distance: -1}}:
		default:
		}
	}
	return nil
}

func (c *Controller) emit(target Floor, state string, distance float64) {
	if c.events == nil {
		return
	}
	// progress only, a stalled consumer must not stall the control loop
	select {
	case c.events <- Event{name: "seek", data: SeekStatus{Floor: target.String(), State: state, Distance: distance}}:
	default:
	}
}
