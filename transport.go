package main

// Wire protocol between the controller and the lift rig firmware.
// Frames are COBS encoded and zero terminated, payloads little endian,
// first byte is the command id. The firmware owns the pulse timing: it
// triggers the ranger, measures the echo and reports the round trip in
// microseconds, 0 when no echo came back in time.

const CMD_RESPONSE = 128
const CMD_GETTER = 64

const CMD_MOTOR = 1
const CMD_SAMPLE = 2

const CMD_GETSAMPLE = CMD_GETTER | CMD_SAMPLE
const CMD_MEASUREMENT = CMD_SAMPLE | CMD_RESPONSE
const CMD_ERROR_RESPONSE = 255

// Half speed of sound in cm/us, the echo time covers the trip twice.
const microsToCm = 0.0343 / 2

type Cmd struct {
	ID byte
}

func SimpleCmd(id byte) Cmd {
	return Cmd{
		ID: id,
	}
}

type MotorFrame struct {
	ID    byte
	Raise uint8
	Lower uint8
}

type MeasurementFrame struct {
	Micros uint32
}

// PulseToCm converts a raw echo round trip to centimeters. A zero pulse
// maps to -1, the "no reliable reading" value the seek loop waits out.
func PulseToCm(micros uint32) float64 {
	if micros == 0 {
		return -1
	}
	return float64(micros) * microsToCm
}

func motorFrame(cmd MotorCommand) MotorFrame {
	f := MotorFrame{ID: CMD_MOTOR}
	if cmd.Raise {
		f.Raise = 1
	}
	if cmd.Lower {
		f.Lower = 1
	}
	return f
}
