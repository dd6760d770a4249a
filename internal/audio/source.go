// Package audio decodes picked files into a duration and a peak envelope for
// the waveform, and plays ranges of them through ffplay.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// DefaultBuckets is the default number of envelope points.
const DefaultBuckets = 512

// ffmpegRate is the mono sample rate requested from ffmpeg. The envelope
// does not need more resolution than this.
const ffmpegRate = 8000

// ErrUnsupportedWAV is returned for WAV encodings other than 16-bit PCM.
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

// Source is a decoded audio file.
type Source struct {
	Path        string
	DurationSec float64
	SampleRate  int
	Channels    int
	// Peaks holds the normalised absolute peak (0..1) of each bucket.
	Peaks []float32
}

// LoadOptions tunes decoding.
type LoadOptions struct {
	Buckets    int
	FFmpegPath string
}

// Load decodes path. WAV and MP3 are decoded in-process; other formats go
// through ffmpeg.
func Load(ctx context.Context, path string, opts LoadOptions) (Source, error) {
	if opts.Buckets <= 0 {
		opts.Buckets = DefaultBuckets
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if _, err := os.Stat(path); err != nil {
		return Source{}, fmt.Errorf("open audio: %w", err)
	}

	var (
		src Source
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		src, err = loadWAV(path, opts.Buckets)
		if errors.Is(err, ErrUnsupportedWAV) {
			src, err = loadFFmpeg(ctx, path, opts)
		}
	case ".mp3":
		src, err = loadMP3(path, opts.Buckets)
	default:
		src, err = loadFFmpeg(ctx, path, opts)
	}
	if err != nil {
		return Source{}, err
	}
	src.Path = path
	return src, nil
}

func loadWAV(path string, buckets int) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read wav: %w", err)
	}
	return decodeWAV(data, buckets)
}

// decodeWAV walks the RIFF chunks of a 16-bit PCM WAV file.
func decodeWAV(data []byte, buckets int) (Source, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Source{}, errors.New("decode wav: not a RIFF/WAVE file")
	}

	var (
		format, channels, bits uint16
		rate                   uint32
		pcm                    []byte
		haveFmt                bool
	)
	le := binary.LittleEndian
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(le.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := min(body+size, len(data))
		switch id {
		case "fmt ":
			if end-body < 16 {
				return Source{}, errors.New("decode wav: short fmt chunk")
			}
			format = le.Uint16(data[body:])
			channels = le.Uint16(data[body+2:])
			rate = le.Uint32(data[body+4:])
			bits = le.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}
		// chunks are word aligned
		off = body + size + size%2
	}

	if !haveFmt || pcm == nil {
		return Source{}, errors.New("decode wav: missing fmt or data chunk")
	}
	if format != 1 || bits != 16 || channels == 0 || rate == 0 {
		return Source{}, fmt.Errorf("decode wav: format %d, %d bits: %w", format, bits, ErrUnsupportedWAV)
	}

	samples := bytesToSamples(pcm)
	frames := len(samples) / int(channels)
	return Source{
		DurationSec: float64(frames) / float64(rate),
		SampleRate:  int(rate),
		Channels:    int(channels),
		Peaks:       envelope(samples, int(channels), buckets),
	}, nil
}

func loadMP3(path string, buckets int) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return Source{}, fmt.Errorf("create mp3 decoder: %w", err)
	}

	// go-mp3 always decodes to 16-bit stereo.
	pcm := make([]byte, dec.Length())
	n, err := io.ReadFull(dec, pcm)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Source{}, fmt.Errorf("decode mp3: %w", err)
	}
	samples := bytesToSamples(pcm[:n])
	rate := dec.SampleRate()
	return Source{
		DurationSec: float64(dec.Length()/4) / float64(rate),
		SampleRate:  rate,
		Channels:    2,
		Peaks:       envelope(samples, 2, buckets),
	}, nil
}

func loadFFmpeg(ctx context.Context, path string, opts LoadOptions) (Source, error) {
	cmd := exec.CommandContext(ctx, opts.FFmpegPath,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(ffmpegRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Source{}, fmt.Errorf("ffmpeg decode %s: %s", filepath.Base(path), msg)
		}
		return Source{}, fmt.Errorf("ffmpeg decode %s: %w", filepath.Base(path), err)
	}
	samples := bytesToSamples(out)
	return Source{
		DurationSec: float64(len(samples)) / ffmpegRate,
		SampleRate:  ffmpegRate,
		Channels:    1,
		Peaks:       envelope(samples, 1, opts.Buckets),
	}, nil
}

// bytesToSamples reinterprets little-endian s16 PCM. A trailing odd byte is
// dropped.
func bytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// envelope reduces interleaved samples to buckets absolute peaks in 0..1.
func envelope(samples []int16, channels, buckets int) []float32 {
	frames := len(samples) / max(1, channels)
	if frames == 0 || buckets <= 0 {
		return nil
	}
	buckets = min(buckets, frames)
	peaks := make([]float32, buckets)
	for f := 0; f < frames; f++ {
		b := f * buckets / frames
		for c := 0; c < channels; c++ {
			v := int32(samples[f*channels+c])
			if v < 0 {
				v = -v
			}
			if p := float32(v) / 32768; p > peaks[b] {
				peaks[b] = p
			}
		}
	}
	return peaks
}
