package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const googleSpeechURL = "http://www.google.com/speech-api/v2/recognize"

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Alternative []Alternative `json:"alternative"`
	Final       bool          `json:"final"`
}

type Response struct {
	Result []Result `json:"result"`
}

type googleRecognizer struct {
	endpoint string
	key      string
	client   *http.Client
}

// Recognize posts 16 kHz FLAC audio and returns the best transcript with
// its confidence.
func (g *googleRecognizer) Recognize(ctx context.Context, flacData []byte) (string, float64, error) {
	data := url.Values{}
	data.Set("client", "chromium")
	data.Set("lang", "en-US")
	data.Set("key", g.key)
	data.Set("pFilter", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?"+data.Encode(), bytes.NewReader(flacData))
	if err != nil {
		return "", 0, fmt.Errorf("build recognizer request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/x-flac; rate=%d", sampleRate))

	resp, err := g.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("sending audio: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("speech api: %s", resp.Status)
	}
	log.Debug("Response Body:", string(body))

	return parse(string(body))
}

// parse reads the newline separated JSON objects the endpoint streams back.
// The first object is usually an empty result.
func parse(responseText string) (string, float64, error) {
	result, err := convertToResult(responseText)
	if err != nil {
		return "", 0, err
	}

	best, err := findBestHypothesis(result.Alternative)
	if err != nil {
		return "", 0, err
	}

	confidence := best.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	return best.Transcript, confidence, nil
}

func convertToResult(responseText string) (Result, error) {
	for _, line := range strings.Split(responseText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var response Response
		if err := json.Unmarshal([]byte(line), &response); err != nil {
			return Result{}, fmt.Errorf("decode speech response: %w", err)
		}
		if len(response.Result) != 0 {
			if len(response.Result[0].Alternative) == 0 {
				return Result{}, ErrNoSpeech
			}
			return response.Result[0], nil
		}
	}
	return Result{}, ErrNoSpeech
}

func findBestHypothesis(alternatives []Alternative) (Alternative, error) {
	if len(alternatives) == 0 {
		return Alternative{}, ErrNoSpeech
	}

	var best Alternative
	highest := -1.0
	for _, alternative := range alternatives {
		if alternative.Confidence > highest {
			highest = alternative.Confidence
			best = alternative
		}
	}

	if best.Transcript == "" {
		return Alternative{}, errors.New("best hypothesis does not have a transcript")
	}
	return best, nil
}
