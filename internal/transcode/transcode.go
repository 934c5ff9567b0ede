// Package transcode converts captured PCM into MP3 with FFmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"

	"github.com/glizzus/clutch/internal/script"
)

var ErrNoAudio = errors.New("no audio to transcode")

// Transcoder runs FFmpeg over raw s16le, 48kHz, stereo PCM.
type Transcoder struct {
	cmd script.Command
}

func New(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{cmd: script.Command{
		Path: ffmpegPath,
		Args: []string{
			"-hide_banner",
			"-loglevel", "error",
			"-f", "s16le",
			"-ar", "48000",
			"-ac", "2",
			"-i", "pipe:0",
			"-codec:a", "libmp3lame",
			"-b:a", "128k",
			"-f", "mp3",
			"pipe:1",
		},
	}}
}

// ToMP3 encodes pcm. Empty input returns ErrNoAudio without starting FFmpeg.
func (t *Transcoder) ToMP3(ctx context.Context, pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	mp3, err := t.cmd.Run(ctx, pcm)
	if err != nil {
		return nil, fmt.Errorf("unable to transcode audio to mp3: %w", err)
	}
	if len(mp3) == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	return mp3, nil
}
