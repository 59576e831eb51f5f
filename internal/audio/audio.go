// Package audio turns uploaded recordings into fixed-length mono 16 kHz
// segments ready for a speech-to-text backend.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/logger"
)

const (
	SampleRate = 16000

	DefaultSegmentDuration = 120 * time.Second

	resampleQuality = 4
)

// Waveform is decoded mono PCM.
type Waveform struct {
	SampleRate int
	Samples    []int16
}

func (w Waveform) Duration() time.Duration {
	if w.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Segment is one slice of a waveform. Offset is its start within the recording.
type Segment struct {
	Index      int
	Offset     time.Duration
	SampleRate int
	Samples    []int16
}

func (s Segment) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// UnsupportedFormatError reports input that could not be decoded or transcoded.
type UnsupportedFormatError struct {
	Path string
	Err  error
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported audio %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

type Chunker struct {
	SegmentDuration time.Duration
	FFmpegPath      string
	Log             *logger.Logger
}

func NewChunker(segment time.Duration, ffmpegPath string, log *logger.Logger) *Chunker {
	if segment <= 0 {
		segment = DefaultSegmentDuration
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Chunker{SegmentDuration: segment, FFmpegPath: ffmpegPath, Log: log.Component("audio")}
}

// Chunk decodes path and splits it into segments of c.SegmentDuration.
func (c *Chunker) Chunk(ctx context.Context, path string) ([]Segment, error) {
	w, err := c.Normalize(ctx, path)
	if err != nil {
		return nil, err
	}
	segs := Split(w, c.SegmentDuration)
	c.Log.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"duration": w.Duration().String(),
		"segments": len(segs),
	}).Info("audio chunked")
	return segs, nil
}

// Normalize returns the recording as mono 16 kHz PCM. WAV and MP3 are decoded
// in-process; everything else goes through ffmpeg first.
func (c *Chunker) Normalize(ctx context.Context, path string) (Waveform, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return decodeFile(path, wavCodec)
	case ".mp3":
		return decodeFile(path, mp3Codec)
	}

	tmp, err := c.transcode(ctx, path)
	if err != nil {
		return Waveform{}, err
	}
	defer os.Remove(tmp)

	w, err := decodeFile(tmp, wavCodec)
	if err != nil {
		return Waveform{}, &UnsupportedFormatError{Path: path, Err: err}
	}
	return w, nil
}

func (c *Chunker) transcode(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	f, err := os.CreateTemp("", "meeting-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	tmp := f.Name()
	f.Close()

	cmd := exec.CommandContext(ctx, c.FFmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-ac", "1", "-ar", fmt.Sprint(SampleRate),
		"-f", "wav", tmp,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &UnsupportedFormatError{
			Path: path,
			Err:  fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(out))),
		}
	}
	return tmp, nil
}

// codec pairs a beep decoder with the factor that brings its output to
// +-1.0 at full scale.
type codec struct {
	decode func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)
	gain   func(beep.Format) float64
}

var (
	wavCodec = codec{
		decode: func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(rc) },
		gain:   wavGain,
	}
	mp3Codec = codec{
		decode: func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(rc) },
		gain:   func(beep.Format) float64 { return 1 },
	}
)

// wavGain undoes the WAV decoder's scaling: 16 and 24 bit samples come out
// divided by 2^n-1 rather than 2^(n-1)-1, i.e. at half amplitude. 8 bit
// samples are already full scale.
func wavGain(f beep.Format) float64 {
	if f.Precision <= 1 {
		return 1
	}
	bits := float64(f.Precision * 8)
	return (math.Exp2(bits) - 1) / (math.Exp2(bits-1) - 1)
}

func decodeFile(path string, c codec) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("open %s: %w", path, err)
	}
	stream, format, err := c.decode(f)
	if err != nil {
		f.Close()
		return Waveform{}, &UnsupportedFormatError{Path: path, Err: err}
	}
	defer stream.Close()

	samples, err := readMono(stream, format, c.gain(format))
	if err != nil {
		return Waveform{}, &UnsupportedFormatError{Path: path, Err: err}
	}
	return Waveform{SampleRate: SampleRate, Samples: samples}, nil
}

// readMono drains s, resampling to SampleRate and averaging the channels.
// gain scales the decoder's output to +-1.0 full scale.
func readMono(s beep.Streamer, format beep.Format, gain float64) ([]int16, error) {
	if format.SampleRate <= 0 {
		return nil, errors.New("invalid sample rate")
	}
	if format.SampleRate != SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, SampleRate, s)
	}

	var out []int16
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, toInt16(gain*(frame[0]+frame[1])/2))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(math.Round(v * 32767))
}

// Split cuts w into consecutive non-overlapping segments. The last one may be
// shorter; an empty waveform yields no segments.
func Split(w Waveform, d time.Duration) []Segment {
	if len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil
	}
	if d <= 0 {
		d = DefaultSegmentDuration
	}
	per := int(int64(w.SampleRate) * int64(d) / int64(time.Second))
	if per < 1 {
		per = 1
	}

	segs := make([]Segment, 0, (len(w.Samples)+per-1)/per)
	for start, i := 0, 0; start < len(w.Samples); start, i = start+per, i+1 {
		end := min(start+per, len(w.Samples))
		segs = append(segs, Segment{
			Index:      i,
			Offset:     time.Duration(start) * time.Second / time.Duration(w.SampleRate),
			SampleRate: w.SampleRate,
			Samples:    w.Samples[start:end],
		})
	}
	return segs
}
