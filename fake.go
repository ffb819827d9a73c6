package main

import (
	"sync"
	"time"
)

const (
	fakeStart = 50.0
	fakeStep  = 0.25
	fakePace  = 25 * time.Millisecond

	// shaft limits, the cab jams against the end stops
	fakeMin = 5.0
	fakeMax = 105.0
)

// FakeRig simulates the shaft so the daemon and its tests run without
// hardware. Each Sample first moves the cab one step in the direction of
// the last motor command and then reads the ranger; the ranger hangs at
// the top, so lowering the cab increases the measured distance.
type FakeRig struct {
	mu       sync.Mutex
	distance float64
	cmd      MotorCommand

	pace   time.Duration
	broker *Broker
}

func NewFakeRig(broker *Broker) *FakeRig {
	return &FakeRig{
		distance: fakeStart,
		pace:     fakePace,
		broker:   broker,
	}
}

func (r *FakeRig) Drive(cmd MotorCommand) error {
	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()
	return nil
}

func (r *FakeRig) Sample() float64 {
	if r.pace > 0 {
		time.Sleep(r.pace)
	}

	r.mu.Lock()
	if r.cmd.Lower {
		r.distance += fakeStep
	}
	if r.cmd.Raise {
		r.distance -= fakeStep
	}
	if r.distance < fakeMin {
		r.distance = fakeMin
	}
	if r.distance > fakeMax {
		r.distance = fakeMax
	}
	distance := r.distance
	r.mu.Unlock()

	if r.broker != nil {
		r.broker.Publish(Event{name: "sample", data: SampleEvent{Distance: distance}})
	}
	return distance
}
