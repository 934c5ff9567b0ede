package opus

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// FrameReader reads length-prefixed Opus frames from an io.Reader.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader returns a new FrameReader that reads from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads and returns the next raw Opus frame.
// Returns io.EOF when there are no more frames.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var size uint16
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// FrameWriter writes length-prefixed Opus frames to an io.Writer.
type FrameWriter struct {
	w io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

func (f *FrameWriter) WriteFrame(frame []byte) error {
	if len(frame) > math.MaxUint16 {
		return fmt.Errorf("frame of %d bytes exceeds the maximum frame size", len(frame))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := f.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := f.w.Write(frame)
	return err
}

// DecodeAll decodes every frame of r into a single PCM buffer. Frames that fail
// to decode are skipped and counted.
func DecodeAll(r io.Reader) (pcm []byte, skipped int, err error) {
	dec, err := NewDecoder()
	if err != nil {
		return nil, 0, err
	}

	frames := NewFrameReader(r)
	for {
		frame, err := frames.ReadFrame()
		if err == io.EOF {
			return pcm, skipped, nil
		}
		if err != nil {
			return pcm, skipped, fmt.Errorf("unable to read frame: %w", err)
		}
		out, err := dec.Decode(frame)
		if err != nil {
			skipped++
			continue
		}
		pcm = append(pcm, out...)
	}
}
