// Package opus decodes Discord voice packets into PCM and reads and writes
// captured packet dumps.
//
// Decoded audio is signed 16-bit little-endian PCM, 48kHz, interleaved stereo,
// which is what the transcoder expects on its input.
//
// Packet dumps use a minimal binary format: concatenated length-prefixed packets
// ([uint16 LE length][opus bytes]). No headers, no metadata.
package opus
