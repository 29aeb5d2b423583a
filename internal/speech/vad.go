package speech

import (
	"fmt"

	vad "github.com/streamer45/silero-vad-go/speech"
)

const (
	vadThreshold            = 0.5
	vadMinSilenceDurationMs = 100
	vadSpeechPadMs          = 30
)

// sileroDetector runs the silero VAD model over 16 kHz PCM.
type sileroDetector struct {
	modelPath string
}

func (s *sileroDetector) HasSpeech(samples []int16) (bool, error) {
	sd, err := vad.NewDetector(vad.DetectorConfig{
		ModelPath:            s.modelPath,
		SampleRate:           sampleRate,
		Threshold:            vadThreshold,
		MinSilenceDurationMs: vadMinSilenceDurationMs,
		SpeechPadMs:          vadSpeechPadMs,
	})
	if err != nil {
		return false, fmt.Errorf("creating silero detector: %w", err)
	}
	defer sd.Destroy()

	segments, err := sd.Detect(toFloat32(samples))
	if err != nil {
		return false, err
	}
	log.Debugf("silero found %d segments", len(segments))
	return len(segments) > 0, nil
}

func toFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}
