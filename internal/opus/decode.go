package opus

import (
	"encoding/binary"
	"fmt"

	libopus "gopkg.in/hraban/opus.v2"
)

const (
	SampleRate = 48000
	Channels   = 2

	// maxFrameSamples is the number of samples per channel in the longest
	// Opus frame (120ms at 48kHz).
	maxFrameSamples = 5760
)

// Decoder turns Opus packets into interleaved PCM bytes. A Decoder keeps
// state between packets and must only be used for a single stream.
type Decoder struct {
	dec *libopus.Decoder
	pcm []int16
}

func NewDecoder() (*Decoder, error) {
	dec, err := libopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("unable to create opus decoder: %w", err)
	}
	return &Decoder{
		dec: dec,
		pcm: make([]int16, maxFrameSamples*Channels),
	}, nil
}

// Decode decodes a single packet. The returned slice is newly allocated.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("unable to decode opus packet: %w", err)
	}
	return PCMBytes(d.pcm[:n*Channels]), nil
}

// PCMBytes encodes samples as little-endian 16-bit PCM.
func PCMBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesPerSecond is the size of one second of decoded audio.
const BytesPerSecond = SampleRate * Channels * 2
