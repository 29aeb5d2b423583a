package speech

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/orcaman/writerseeker"
)

const (
	bitsPerSample = 16
	flacBlockSize = 4096
)

// EncodeFLAC writes mono 16-bit PCM as a FLAC stream with verbatim subframes.
func EncodeFLAC(samples []int16, rate int) ([]byte, error) {
	buf := new(bytes.Buffer)

	streamInfo := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(rate),
		NChannels:     1,
		BitsPerSample: bitsPerSample,
		NSamples:      uint64(len(samples)),
		MD5sum:        pcmMD5(samples),
	}

	enc, err := flac.NewEncoder(buf, streamInfo)
	if err != nil {
		return nil, fmt.Errorf("creating FLAC encoder: %w", err)
	}

	for i, num := 0, uint64(0); i < len(samples); i, num = i+flacBlockSize, num+1 {
		end := min(i+flacBlockSize, len(samples))
		block := make([]int32, end-i)
		for j, s := range samples[i:end] {
			block[j] = int32(s)
		}

		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(len(block)),
				SampleRate:        uint32(rate),
				Channels:          frame.ChannelsMono,
				BitsPerSample:     bitsPerSample,
				Num:               num,
			},
			Subframes: []*frame.Subframe{
				{
					SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
					Samples:   block,
					NSamples:  len(block),
				},
			},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing FLAC frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing FLAC encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func pcmMD5(samples []int16) [md5.Size]uint8 {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	return md5.Sum(raw)
}

// EncodeWAV writes mono 16-bit PCM as a WAV file held in memory.
func EncodeWAV(samples []int16, rate int) ([]byte, error) {
	// Emulate a file in RAM so that we don't have to create a real file.
	file := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(file, rate, bitsPerSample, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: rate, NumChannels: 1},
		Data:           data,
		SourceBitDepth: bitsPerSample,
	}

	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	wavData, err := io.ReadAll(file.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading WAV file into memory: %w", err)
	}
	return wavData, nil
}
