package capture

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WAVWriter writes a PCM WAV file around a stream of raw sample bytes. The
// header is written up front with zero lengths and patched by Finalize once
// the data size is known.
type WAVWriter struct {
	w       io.WriteSeeker
	dataLen uint32
}

const wavHeaderSize = 44

// NewWAVWriter writes the WAV header and returns a writer for the data
// chunk. bits must be a whole number of bytes on the wire (8/16/24/32).
func NewWAVWriter(w io.WriteSeeker, sampleRate uint32, bits uint16, channels uint16) (*WAVWriter, error) {
	if bits%8 != 0 || bits == 0 || bits > 32 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}
	if channels == 0 {
		return nil, fmt.Errorf("wav: channel count must be positive")
	}

	blockAlign := channels * bits / 8
	byteRate := sampleRate * uint32(blockAlign)

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	// hdr[4:8] riff size, patched in Finalize
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], channels)
	binary.LittleEndian.PutUint32(hdr[24:28], sampleRate)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bits)
	copy(hdr[36:40], "data")
	// hdr[40:44] data size, patched in Finalize

	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("wav: write header: %w", err)
	}
	return &WAVWriter{w: w}, nil
}

// Write appends raw sample bytes to the data chunk.
func (ww *WAVWriter) Write(p []byte) (int, error) {
	n, err := ww.w.Write(p)
	ww.dataLen += uint32(n)
	return n, err
}

// Finalize patches the RIFF and data chunk sizes. The writer must not be
// used afterwards.
func (ww *WAVWriter) Finalize() error {
	var sz [4]byte

	binary.LittleEndian.PutUint32(sz[:], 36+ww.dataLen)
	if _, err := ww.w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek riff size: %w", err)
	}
	if _, err := ww.w.Write(sz[:]); err != nil {
		return fmt.Errorf("wav: patch riff size: %w", err)
	}

	binary.LittleEndian.PutUint32(sz[:], ww.dataLen)
	if _, err := ww.w.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek data size: %w", err)
	}
	if _, err := ww.w.Write(sz[:]); err != nil {
		return fmt.Errorf("wav: patch data size: %w", err)
	}

	_, err := ww.w.Seek(0, io.SeekEnd)
	return err
}
