package mipmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// npy implements the minimal subset of NumPy's .npy format (spec §6.2:
// "memory-mapped .npy files") needed here: a 2-D, C-contiguous uint16
// array, version 1.0, no fancy dtype features.

const npyMagic = "\x93NUMPY"

func writeNpyUint16(path string, width, height int, data []uint16) error {
	header := fmt.Sprintf("{'descr': '<u2', 'fortran_order': False, 'shape': (%d, %d), }", height, width)
	// pad header so magic+version+headerlen+header is a multiple of 64 bytes,
	// terminated with '\n'.
	const preludeLen = len(npyMagic) + 2 + 2
	total := preludeLen + len(header) + 1
	pad := (64 - total%64) % 64
	header += stringOfSpaces(pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	buf.Write(lenBuf[:])
	buf.WriteString(header)

	dataBytes := make([]byte, len(data)*2)
	for i, v := range data {
		binary.LittleEndian.PutUint16(dataBytes[i*2:], v)
	}
	buf.Write(dataBytes)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write npy %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

func stringOfSpaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

// mmapNpyUint16 memory-maps path (already written by writeNpyUint16) and
// returns the parsed width/height plus the uint16 pixels copied out of the
// mapping; the mapping is unmapped before it returns.
type mmapTile struct {
	data   []byte
	Pixels []uint16
	Width  int
	Height int
}

func mmapNpyUint16(path string) (*mmapTile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open npy %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	header := string(data[10 : 10+headerLen])
	h, w, err := parseShape(header)
	if err != nil {
		unix.Munmap(data)
		return nil, err
	}
	body := data[10+headerLen:]
	pixels := make([]uint16, w*h)
	for i := range pixels {
		pixels[i] = binary.LittleEndian.Uint16(body[i*2:])
	}
	unix.Munmap(data)
	return &mmapTile{Pixels: pixels, Width: w, Height: h}, nil
}

func parseShape(header string) (h, w int, err error) {
	idx := indexOf(header, "shape': (")
	if idx < 0 {
		return 0, 0, fmt.Errorf("npy header: no shape field")
	}
	rest := header[idx+len("shape': ("):]
	var a, b int
	n, scanErr := fmt.Sscanf(rest, "%d, %d", &a, &b)
	if scanErr != nil || n != 2 {
		return 0, 0, fmt.Errorf("npy header: malformed shape %q", rest)
	}
	return a, b, nil
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
