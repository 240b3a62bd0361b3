package export

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/unabara/internal/errors"
)

// Codec names an ffmpeg encoder profile.
type Codec string

const (
	CodecH264   Codec = "h264"
	CodecHEVC   Codec = "hevc"
	CodecProRes Codec = "prores"
	CodecVP9    Codec = "vp9"
)

// ParseCodec accepts the codec names case-insensitively.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(name))); c {
	case CodecH264, CodecHEVC, CodecProRes, CodecVP9:
		return c, nil
	}
	return "", errors.New().WithData(ErrUnknownCodec, struct{ Codec string }{name})
}

// Extension is the container file extension, without the dot.
func (c Codec) Extension() string {
	switch c {
	case CodecProRes:
		return "mov"
	case CodecVP9:
		return "webm"
	default:
		return "mp4"
	}
}

// Args are the encoder options placed between the input and the output.
// ProRes and VP9 keep the overlay's alpha channel.
func (c Codec) Args(bitrateK int) []string {
	rate := strconv.Itoa(bitrateK) + "k"
	switch c {
	case CodecProRes:
		return []string{"-c:v", "prores_ks", "-profile:v", "4444", "-pix_fmt", "yuva444p10le",
			"-alpha_bits", "16", "-bits_per_mb", "8000", "-vendor", "ap10"}
	case CodecVP9:
		return []string{"-c:v", "libvpx-vp9", "-pix_fmt", "yuva420p", "-b:v", rate,
			"-deadline", "good", "-cpu-used", "2"}
	case CodecHEVC:
		return []string{"-c:v", "libx265", "-preset", "medium", "-crf", "23", "-pix_fmt", "yuv420p",
			"-tag:v", "hvc1", "-b:v", rate}
	default:
		return []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-pix_fmt", "yuv420p",
			"-movflags", "+faststart", "-b:v", rate}
	}
}
