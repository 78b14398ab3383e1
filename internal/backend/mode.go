package backend

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// Tail bounds for mode detection.
const (
	DefaultTailLines = 200
	maxTailBytes     = 256 << 10
	tailChunk        = 32 << 10
)

// DefaultModeMarker is the token the backend prints once it has chosen a
// compute mode, e.g. "⚙️ 推論模式: CUDA GPU (n_gpu_layers=-1)".
const DefaultModeMarker = "推論模式"

// ModeDetector recovers the backend compute mode from its log file.
type ModeDetector struct {
	Marker    string
	TailLines int
}

// NewModeDetector returns a detector for marker, falling back to the
// defaults for empty or non-positive values.
func NewModeDetector(marker string, tailLines int) *ModeDetector {
	if marker == "" {
		marker = DefaultModeMarker
	}
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}
	return &ModeDetector{Marker: marker, TailLines: tailLines}
}

// Detect returns the text after the first colon of the newest complete log
// line containing the marker. Missing files, read errors and logs without
// a marker all report false.
func (d *ModeDetector) Detect(logPath string) (string, bool) {
	lines, err := tailLines(logPath, d.TailLines)
	if err != nil {
		return "", false
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.Contains(line, d.Marker) {
			continue
		}
		_, after, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		return strings.TrimSpace(after), true
	}
	return "", false
}

// tailLines returns up to n complete lines from the end of the file,
// reading at most maxTailBytes. An unterminated last line is dropped since
// the writer may still be in the middle of it.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	var buf []byte
	off := size
	for off > 0 && size-off < maxTailBytes && bytes.Count(buf, []byte{'\n'}) <= n {
		step := int64(tailChunk)
		if step > off {
			step = off
		}
		off -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, off); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)
	}
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	} else {
		return nil, nil
	}
	lines := strings.Split(string(buf), "\n")
	// When reading stopped mid-file the first element may be a fragment.
	if off > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, nil
}
