package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWAVWriterHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := NewWAVWriter(f, 16000, 16, 1)
	if err != nil {
		t.Fatal(err)
	}

	samples := make([]byte, 2048)
	if _, err := w.Write(samples); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != wavHeaderSize+len(samples) {
		t.Fatalf("file size %d, want %d", len(data), wavHeaderSize+len(samples))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 36+2048 {
		t.Errorf("riff size %d, want %d", got, 36+2048)
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Errorf("format %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 32000 {
		t.Errorf("byte rate %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 2 {
		t.Errorf("block align %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Errorf("bits %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 2048 {
		t.Errorf("data size %d, want 2048", got)
	}
}

func TestWAVWriterRejectsBadDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := NewWAVWriter(f, 16000, 12, 1); err == nil {
		t.Error("12-bit depth accepted")
	}
	if _, err := NewWAVWriter(f, 16000, 16, 0); err == nil {
		t.Error("zero channels accepted")
	}
}
