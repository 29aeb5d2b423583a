package speech

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context) (Clip, error) {
	args := m.Called(ctx)
	return args.Get(0).(Clip), args.Error(1)
}

type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) HasSpeech(samples []int16) (bool, error) {
	args := m.Called(samples)
	return args.Bool(0), args.Error(1)
}

const googleReply = `{"result":[]}
{"result":[{"alternative":[{"transcript":"hello world","confidence":0.92},{"transcript":"hello word"}],"final":true}],"result_index":0}
`

func tone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*200*float64(i)/sampleRate))
	}
	return out
}

func newTestDictator(t *testing.T, handler http.HandlerFunc) (*Dictator, *MockRecorder, *MockDetector) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rec := new(MockRecorder)
	det := new(MockDetector)
	return &Dictator{
		cfg:      Config{APIKey: "secret"},
		rec:      rec,
		detector: det,
		google: &googleRecognizer{
			endpoint: server.URL,
			key:      "secret",
			client:   server.Client(),
		},
	}, rec, det
}

func TestNewDictatorWithoutKey(t *testing.T) {
	d, err := NewDictator(Config{})
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = d.Dictate(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestDictate(t *testing.T) {
	var gotQuery, gotType string
	var gotBody []byte
	d, rec, det := newTestDictator(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("key")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, googleReply)
	})
	rec.On("Record", mock.Anything).Return(Clip{Samples: tone(1600), SampleRate: sampleRate}, nil)
	det.On("HasSpeech", mock.Anything).Return(true, nil)

	text, err := d.Dictate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "secret", gotQuery)
	assert.Equal(t, "audio/x-flac; rate=16000", gotType)
	assert.Equal(t, "fLaC", string(gotBody[:4]))
	det.AssertExpectations(t)
}

func TestDictateNoSpeechSkipsUpload(t *testing.T) {
	called := false
	d, rec, det := newTestDictator(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	rec.On("Record", mock.Anything).Return(Clip{Samples: tone(1600), SampleRate: sampleRate}, nil)
	det.On("HasSpeech", mock.Anything).Return(false, nil)

	_, err := d.Dictate(context.Background())

	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.False(t, called)
}

func TestDictateRecorderError(t *testing.T) {
	d, rec, det := newTestDictator(t, func(w http.ResponseWriter, r *http.Request) {})
	rec.On("Record", mock.Anything).Return(Clip{}, context.Canceled)

	_, err := d.Dictate(context.Background())

	assert.ErrorIs(t, err, context.Canceled)
	det.AssertNotCalled(t, "HasSpeech", mock.Anything)
}

func TestDictateDetectorError(t *testing.T) {
	d, rec, det := newTestDictator(t, func(w http.ResponseWriter, r *http.Request) {})
	rec.On("Record", mock.Anything).Return(Clip{Samples: tone(1600), SampleRate: sampleRate}, nil)
	det.On("HasSpeech", mock.Anything).Return(false, errors.New("onnx"))

	_, err := d.Dictate(context.Background())

	assert.ErrorContains(t, err, "detect voice: onnx")
}

func TestDictateAPIError(t *testing.T) {
	d, rec, det := newTestDictator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	rec.On("Record", mock.Anything).Return(Clip{Samples: tone(1600), SampleRate: sampleRate}, nil)
	det.On("HasSpeech", mock.Anything).Return(true, nil)

	_, err := d.Dictate(context.Background())

	assert.ErrorContains(t, err, "403")
}

func TestDictateKeepsClip(t *testing.T) {
	dir := t.TempDir()
	d, rec, det := newTestDictator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, googleReply)
	})
	d.cfg.KeepDir = dir
	rec.On("Record", mock.Anything).Return(Clip{Samples: tone(1600), SampleRate: sampleRate}, nil)
	det.On("HasSpeech", mock.Anything).Return(true, nil)

	_, err := d.Dictate(context.Background())
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "clip_*.wav"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestParse(t *testing.T) {
	text, confidence, err := parse(googleReply)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.InDelta(t, 0.92, confidence, 1e-9)
}

func TestParseDefaultConfidence(t *testing.T) {
	_, confidence, err := parse(`{"result":[{"alternative":[{"transcript":"hi"}]}]}`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, confidence)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty body", "", ErrNoSpeech},
		{"only empty results", `{"result":[]}` + "\n", ErrNoSpeech},
		{"no alternatives", `{"result":[{"alternative":[]}]}`, ErrNoSpeech},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parse(tt.body)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, _, err := parse("not json")
	assert.ErrorContains(t, err, "decode speech response")

	_, _, err = parse(`{"result":[{"alternative":[{"confidence":0.9}]}]}`)
	assert.ErrorContains(t, err, "does not have a transcript")
}

func TestCalculateRMS16(t *testing.T) {
	assert.Equal(t, 0.0, calculateRMS16(nil))
	assert.InDelta(t, 1000, calculateRMS16([]int16{1000, -1000, 1000, -1000}), 1e-9)
}

func TestSpeechGate(t *testing.T) {
	quiet := make([]int16, 4)
	loud := []int16{2000, -2000, 2000, -2000}
	start := time.Now()

	g := newSpeechGate(start)
	assert.Equal(t, gateWaiting, g.feed(quiet, start.Add(100*time.Millisecond)))
	assert.Equal(t, gateRecording, g.feed(loud, start.Add(200*time.Millisecond)))
	assert.Equal(t, gateRecording, g.feed(quiet, start.Add(700*time.Millisecond)))
	assert.Equal(t, gateDone, g.feed(quiet, start.Add(1300*time.Millisecond)))
	assert.Len(t, g.buffer, 12)
}

func TestSpeechGateTimesOut(t *testing.T) {
	start := time.Now()
	g := newSpeechGate(start)
	assert.Equal(t, gateTimedOut, g.feed(make([]int16, 4), start.Add(waitForSpeech+time.Second)))
}

func TestSpeechGateCapsLength(t *testing.T) {
	loud := []int16{2000, -2000}
	start := time.Now()
	g := newSpeechGate(start)
	assert.Equal(t, gateRecording, g.feed(loud, start))
	assert.Equal(t, gateDone, g.feed(loud, start.Add(maxSegmentDuration)))
}

// scriptedStream fills the capture buffer from frames, failing where a
// frame is nil.
type scriptedStream struct {
	in     []int16
	frames [][]int16
	reads  int
}

func (s *scriptedStream) Read() error {
	if s.reads >= len(s.frames) {
		return errors.New("stream exhausted")
	}
	frame := s.frames[s.reads]
	s.reads++
	if frame == nil {
		return errors.New("device unavailable")
	}
	copy(s.in, frame)
	return nil
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	now := time.Now()
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestCaptureGivesUpOnFailingDevice(t *testing.T) {
	in := make([]int16, 4)
	stream := &scriptedStream{in: in, frames: make([][]int16, 50)}

	_, err := capture(context.Background(), stream, in, sampleRate, stepClock(time.Millisecond))

	assert.ErrorContains(t, err, "device unavailable")
	assert.Equal(t, maxReadFailures, stream.reads)
}

func TestCaptureSurvivesOccasionalReadErrors(t *testing.T) {
	loud := []int16{2000, -2000, 2000, -2000}
	quiet := make([]int16, 4)
	in := make([]int16, 4)
	stream := &scriptedStream{in: in, frames: [][]int16{nil, loud, nil, loud, quiet, quiet, quiet}}

	clip, err := capture(context.Background(), stream, in, sampleRate, stepClock(400*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, sampleRate, clip.SampleRate)
	assert.Equal(t, loud, clip.Samples[:4])
}

func TestCaptureStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := make([]int16, 4)

	_, err := capture(ctx, &scriptedStream{in: in}, in, sampleRate, time.Now)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestResample(t *testing.T) {
	assert.Nil(t, Resample(nil, 48000, 16000))

	same := []int16{1, 2, 3}
	out := Resample(same, 16000, 16000)
	assert.Equal(t, same, out)
	out[0] = 9
	assert.Equal(t, int16(1), same[0])

	dc := make([]int16, 480)
	for i := range dc {
		dc[i] = 1000
	}
	out = Resample(dc, 48000, 16000)
	require.Len(t, out, 160)
	for _, s := range out {
		assert.InDelta(t, 1000, s, 1)
	}
}

func TestResamplePreservesLowTone(t *testing.T) {
	// 10 whole cycles of 100 Hz
	in := make([]int16, 4800)
	for i := range in {
		in[i] = int16(math.Round(10000 * math.Sin(2*math.Pi*100*float64(i)/48000)))
	}

	out := Resample(in, 48000, 16000)

	require.Len(t, out, 1600)
	for i, s := range out {
		want := 10000 * math.Sin(2*math.Pi*100*float64(i)/16000)
		assert.InDelta(t, want, float64(s), 3, "sample %d", i)
	}
}

func TestEncodeWAV(t *testing.T) {
	data, err := EncodeWAV(tone(160), sampleRate)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Greater(t, len(data), 2*160)
}

func TestEncodeFLAC(t *testing.T) {
	data, err := EncodeFLAC(tone(5000), sampleRate)
	require.NoError(t, err)
	assert.Equal(t, "fLaC", string(data[:4]))
}

func TestClipDuration(t *testing.T) {
	assert.Equal(t, time.Second, Clip{Samples: make([]int16, 16000), SampleRate: 16000}.Duration())
	assert.Equal(t, time.Duration(0), Clip{}.Duration())
}
