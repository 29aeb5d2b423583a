package speech

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512 * 9

type micRecorder struct {
	device int
}

// Record captures from the microphone until the speaker goes quiet.
func (r *micRecorder) Record(ctx context.Context) (Clip, error) {
	if err := portaudio.Initialize(); err != nil {
		return Clip{}, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	device, err := selectInputDevice(r.device)
	if err != nil {
		return Clip{}, err
	}
	rate := int(device.DefaultSampleRate)

	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: len(in),
	}, &in)
	if err != nil {
		return Clip{}, fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return Clip{}, fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	log.Info("listening on", device.Name)
	return capture(ctx, stream, in, rate, time.Now)
}

const maxReadFailures = 10

type streamReader interface {
	Read() error
}

// capture reads into in until the speech gate closes. maxReadFailures
// consecutive read errors end the recording.
func capture(ctx context.Context, stream streamReader, in []int16, rate int, now func() time.Time) (Clip, error) {
	gate := newSpeechGate(now())
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return Clip{}, err
		}
		if err := stream.Read(); err != nil {
			failures++
			log.Warnf("reading from stream: %v", err)
			if failures >= maxReadFailures {
				return Clip{}, fmt.Errorf("reading from stream: %w", err)
			}
			continue
		}
		failures = 0

		switch gate.feed(in, now()) {
		case gateDone:
			return Clip{Samples: gate.buffer, SampleRate: rate}, nil
		case gateTimedOut:
			return Clip{}, ErrNoSpeech
		}
	}
}

type gateResult int

const (
	gateWaiting gateResult = iota
	gateRecording
	gateDone
	gateTimedOut
)

// speechGate starts a clip on the first loud buffer and ends it after a
// second of quiet or at the hard cap.
type speechGate struct {
	opened    time.Time
	started   time.Time
	lastLoud  time.Time
	recording bool
	buffer    []int16
}

func newSpeechGate(now time.Time) *speechGate {
	return &speechGate{opened: now}
}

func (g *speechGate) feed(in []int16, now time.Time) gateResult {
	if calculateRMS16(in) > minMicVolume {
		if !g.recording {
			g.recording = true
			g.started = now
		}
		g.lastLoud = now
	}

	if !g.recording {
		if now.Sub(g.opened) > waitForSpeech {
			return gateTimedOut
		}
		return gateWaiting
	}

	g.buffer = append(g.buffer, in...)
	if now.Sub(g.lastLoud) >= sendToVADDelay || now.Sub(g.started) >= maxSegmentDuration {
		return gateDone
	}
	return gateRecording
}

func selectInputDevice(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("find default device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if index >= len(devices) {
		return nil, fmt.Errorf("no input device %d", index)
	}
	device := devices[index]
	if device.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", index, device.Name)
	}
	log.Info("selected device:", device.Name, device.DefaultSampleRate)
	return device, nil
}

// InputDevice describes a capture device for the devices command.
type InputDevice struct {
	ID         int
	Name       string
	Channels   int
	SampleRate float64
}

// InputDevices lists the devices that can record.
func InputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var out []InputDevice
	for i, device := range devices {
		if device.MaxInputChannels < 1 {
			continue
		}
		out = append(out, InputDevice{
			ID:         i,
			Name:       device.Name,
			Channels:   device.MaxInputChannels,
			SampleRate: device.DefaultSampleRate,
		})
	}
	return out, nil
}

// calculateRMS16 calculates the root-mean-square of the audio buffer for int16 samples.
func calculateRMS16(buffer []int16) float64 {
	if len(buffer) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range buffer {
		val := float64(sample)
		sumSquares += val * val
	}
	return math.Sqrt(sumSquares / float64(len(buffer)))
}
