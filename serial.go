package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/dgryski/go-cobs"
	"github.com/jacobsa/go-serial/serial"
)

const samplePeriod = 100 * time.Millisecond
const sampleWait = 500 * time.Millisecond

// SerialRig talks to the lift firmware over a serial line. A single
// producer goroutine owns the port: outgoing frames funnel through the
// commands channel, measurement frames come back and the freshest one is
// kept for Sample.
type SerialRig struct {
	commands chan interface{}
	samples  chan float64
	broker   *Broker
}

func OpenSerialRig(cfg Config, broker *Broker) *SerialRig {
	r := &SerialRig{
		commands: make(chan interface{}, 10),
		samples:  make(chan float64, 1),
		broker:   broker,
	}
	go r.producer(cfg)
	return r
}

func (r *SerialRig) Drive(cmd MotorCommand) error {
	r.commands <- motorFrame(cmd)
	return nil
}

// Sample hands out the next distance reported by the ranger, -1 when
// nothing fresh arrives in time. The seek loop treats both the firmware's
// no-echo reading and this local timeout the same way.
func (r *SerialRig) Sample() float64 {
	select {
	case distance := <-r.samples:
		return distance
	case <-time.After(sampleWait):
		return -1
	}
}

func (r *SerialRig) producer(cfg Config) {
	options := serial.OpenOptions{
		PortName:        cfg.SerialPath,
		BaudRate:        cfg.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 4,
	}

	port, err := serial.Open(options)
	if err != nil {
		log.Fatalf("serial.Open: %v", err)
	}
	defer port.Close()

	reader := bufio.NewReader(port)

	ticker := time.NewTicker(samplePeriod)
	go func() {
		for {
			<-ticker.C
			r.commands <- SimpleCmd(CMD_GETSAMPLE)
		}
	}()

	go func() {
		for {
			cmd := <-r.commands

			var buffer bytes.Buffer
			err := binary.Write(&buffer, binary.LittleEndian, cmd)
			if err != nil {
				fmt.Println(err)
				continue
			}

			encoded := cobs.Encode(buffer.Bytes())
			encoded = append(encoded, '\x00')
			port.Write(encoded)
		}
	}()

	for {
		frame, err := reader.ReadBytes('\x00')
		if err != nil {
			panic(err)
		}

		decoded, err := cobs.Decode(frame[:len(frame)-1])
		if err != nil {
			log.Println(err)
			continue
		}
		if len(decoded) == 0 {
			continue
		}

		cmd := decoded[0]
		rr := bytes.NewReader(decoded[1:])

		if cmd == CMD_MEASUREMENT {
			m := MeasurementFrame{}
			if err := binary.Read(rr, binary.LittleEndian, &m); err != nil {
				log.Println(err)
				continue
			}
			r.publishSample(PulseToCm(m.Micros))
		} else if cmd == CMD_ERROR_RESPONSE {
			var size byte
			if err := binary.Read(rr, binary.LittleEndian, &size); err != nil {
				fmt.Println(err)
				continue
			}

			errorMsg := make([]byte, size)
			if err := binary.Read(rr, binary.LittleEndian, errorMsg); err != nil {
				fmt.Println(err)
				continue
			}

			fmt.Printf("rig error: %s\n", string(errorMsg))
		} else {
			fmt.Printf("unknown cmd %d\n", cmd)
		}
	}
}

func (r *SerialRig) publishSample(distance float64) {
	// latest wins, Sample must never read a stale backlog
	select {
	case <-r.samples:
	default:
	}
	r.samples <- distance

	if r.broker != nil {
		r.broker.Publish(Event{name: "sample", data: SampleEvent{Distance: distance}})
	}
}
