// Package speech records a spoken message from the microphone and turns it
// into text with the Google speech API.
package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bz888/agentchat/internal/logger"
)

const (
	sampleRate = 16000

	minMicVolume       = 450
	sendToVADDelay     = time.Second
	maxSegmentDuration = 25 * time.Second
	waitForSpeech      = 10 * time.Second
)

var (
	ErrDisabled = errors.New("voice input disabled")
	ErrNoSpeech = errors.New("no speech detected")
)

var log = logger.New("speech")

type Config struct {
	// APIKey for the Google speech endpoint. Empty disables dictation.
	APIKey string
	// ModelPath is the silero VAD onnx model.
	ModelPath string
	// Device is a portaudio device index. Negative selects the default input.
	Device int
	// KeepDir, when set, receives a WAV copy of every recorded clip.
	KeepDir string
}

// Clip is mono 16-bit PCM.
type Clip struct {
	Samples    []int16
	SampleRate int
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

type recorder interface {
	Record(ctx context.Context) (Clip, error)
}

type detector interface {
	HasSpeech(samples []int16) (bool, error)
}

type Dictator struct {
	cfg      Config
	rec      recorder
	detector detector
	google   *googleRecognizer
}

func NewDictator(cfg Config) (*Dictator, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	return &Dictator{
		cfg:      cfg,
		rec:      &micRecorder{device: cfg.Device},
		detector: &sileroDetector{modelPath: cfg.ModelPath},
		google: &googleRecognizer{
			endpoint: googleSpeechURL,
			key:      cfg.APIKey,
			client:   &http.Client{Timeout: 30 * time.Second},
		},
	}, nil
}

// Dictate blocks until one utterance has been recorded and transcribed.
func (d *Dictator) Dictate(ctx context.Context) (string, error) {
	if d == nil {
		return "", ErrDisabled
	}

	log.Info("Voice recogniser started")
	clip, err := d.rec.Record(ctx)
	if err != nil {
		return "", err
	}
	log.Infof("recorded %s at %d Hz", clip.Duration(), clip.SampleRate)

	samples := Resample(clip.Samples, clip.SampleRate, sampleRate)
	if len(samples) == 0 {
		return "", ErrNoSpeech
	}

	start := time.Now()
	detected, err := d.detector.HasSpeech(samples)
	if err != nil {
		return "", fmt.Errorf("detect voice: %w", err)
	}
	log.Debug("voice detecting result", time.Since(start), detected)
	if !detected {
		return "", ErrNoSpeech
	}

	if d.cfg.KeepDir != "" {
		d.keep(samples)
	}

	flacData, err := EncodeFLAC(samples, sampleRate)
	if err != nil {
		return "", err
	}

	start = time.Now()
	transcript, confidence, err := d.google.Recognize(ctx, flacData)
	if err != nil {
		return "", err
	}
	log.Infof("done in: %s, confidence: %.2f", time.Since(start), confidence)
	return transcript, nil
}

func (d *Dictator) keep(samples []int16) {
	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		log.Warn("encode wav:", err)
		return
	}
	name := filepath.Join(d.cfg.KeepDir, fmt.Sprintf("clip_%s.wav", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(name, wavData, 0o644); err != nil {
		log.Warn("write clip:", err)
		return
	}
	log.Debug("kept clip", name)
}
