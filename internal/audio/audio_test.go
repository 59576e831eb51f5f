package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
)

func tone(n, rate int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return s
}

func writeWAV(t *testing.T, samples []int16, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	if err := os.WriteFile(path, EncodeWAV(samples, rate), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSplit(t *testing.T) {
	w := Waveform{SampleRate: SampleRate, Samples: make([]int16, SampleRate*5+100)}

	segs := Split(w, 2*time.Second)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	total := 0
	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has index %d", i, s.Index)
		}
		if s.Offset != time.Duration(i)*2*time.Second {
			t.Errorf("segment %d offset = %v", i, s.Offset)
		}
		total += len(s.Samples)
	}
	if total != len(w.Samples) {
		t.Errorf("segments cover %d samples, want %d", total, len(w.Samples))
	}
	if got := len(segs[2].Samples); got != SampleRate+100 {
		t.Errorf("last segment has %d samples, want %d", got, SampleRate+100)
	}
}

func TestSplitEmpty(t *testing.T) {
	if segs := Split(Waveform{SampleRate: SampleRate}, time.Second); len(segs) != 0 {
		t.Errorf("empty waveform gave %d segments", len(segs))
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	data := EncodeWAV([]int16{1, -1, 300}, SampleRate)
	if len(data) != 44+6 {
		t.Fatalf("len = %d, want 50", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q", data[:40])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 6 {
		t.Errorf("data length = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[48:50])); got != 300 {
		t.Errorf("last sample = %d", got)
	}
}

func TestChunkWAV(t *testing.T) {
	samples := tone(SampleRate*3, SampleRate)
	path := writeWAV(t, samples, SampleRate)

	c := NewChunker(time.Second, "", nil)
	segs, err := c.Chunk(context.Background(), path)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for i, s := range segs {
		if s.SampleRate != SampleRate {
			t.Errorf("segment %d rate = %d", i, s.SampleRate)
		}
		if len(s.Samples) != SampleRate {
			t.Errorf("segment %d has %d samples", i, len(s.Samples))
		}
	}
	for i := 0; i < 100; i++ {
		d := int(segs[0].Samples[i]) - int(samples[i])
		if d < -1 || d > 1 {
			t.Fatalf("sample %d = %d, want ~%d", i, segs[0].Samples[i], samples[i])
		}
	}
}

func TestNormalizeResamples(t *testing.T) {
	path := writeWAV(t, tone(8000, 8000), 8000)

	w, err := NewChunker(0, "", nil).Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if w.SampleRate != SampleRate {
		t.Errorf("rate = %d", w.SampleRate)
	}
	if n := len(w.Samples); n < 15000 || n > 17000 {
		t.Errorf("one second at 8 kHz resampled to %d samples", n)
	}
}

func TestNormalizeGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("definitely not a riff file"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewChunker(0, "", nil).Normalize(context.Background(), path)
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UnsupportedFormatError", err)
	}
	if ufe.Path != path {
		t.Errorf("Path = %q", ufe.Path)
	}
}

func TestNormalizeTranscodeFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeting.m4a")
	if err := os.WriteFile(path, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChunker(0, filepath.Join(t.TempDir(), "no-such-ffmpeg"), nil)
	_, err := c.Normalize(context.Background(), path)
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UnsupportedFormatError", err)
	}
}

var fullScale = []int16{32767, -32768, 1375, -8000, 0, 16384}

func TestWAVKeepsFullScale(t *testing.T) {
	w, err := NewChunker(0, "", nil).Normalize(context.Background(), writeWAV(t, fullScale, SampleRate))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(w.Samples) != len(fullScale) {
		t.Fatalf("got %d samples, want %d", len(w.Samples), len(fullScale))
	}
	for i, want := range fullScale {
		if got := w.Samples[i]; got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

// pcmStream decodes signed 16-bit stereo PCM the way the MP3 decoder
// delivers its frames.
func pcmStream(samples []int16) (beep.Streamer, beep.Format) {
	format := beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2}
	raw := make([]byte, 0, len(samples)*4)
	for _, s := range samples {
		raw = binary.LittleEndian.AppendUint16(raw, uint16(s))
		raw = binary.LittleEndian.AppendUint16(raw, uint16(s))
	}
	pos := 0
	stream := beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		n := 0
		for n < len(buf) && pos < len(raw) {
			buf[n], _ = format.DecodeSigned(raw[pos:])
			pos += format.Width()
			n++
		}
		return n, n > 0
	})
	return stream, format
}

func TestMP3PathMatchesWAVAmplitude(t *testing.T) {
	stream, format := pcmStream(fullScale)
	mp3Samples, err := readMono(stream, format, mp3Codec.gain(format))
	if err != nil {
		t.Fatalf("readMono: %v", err)
	}

	wavWave, err := NewChunker(0, "", nil).Normalize(context.Background(), writeWAV(t, fullScale, SampleRate))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(mp3Samples) != len(fullScale) {
		t.Fatalf("got %d samples, want %d", len(mp3Samples), len(fullScale))
	}
	for i, want := range fullScale {
		// -32768 has no positive twin in signed decoding; allow one step.
		if d := int(mp3Samples[i]) - int(want); d < -1 || d > 1 {
			t.Errorf("mp3 sample %d = %d, want %d", i, mp3Samples[i], want)
		}
		if d := int(mp3Samples[i]) - int(wavWave.Samples[i]); d < -1 || d > 1 {
			t.Errorf("sample %d: mp3 %d vs wav %d", i, mp3Samples[i], wavWave.Samples[i])
		}
	}
}

func TestWAVGain(t *testing.T) {
	if g := wavGain(beep.Format{Precision: 1}); g != 1 {
		t.Errorf("8-bit gain = %v, want 1", g)
	}
	if g := wavGain(beep.Format{Precision: 2}); math.Abs(g-65535.0/32767) > 1e-12 {
		t.Errorf("16-bit gain = %v", g)
	}
}
