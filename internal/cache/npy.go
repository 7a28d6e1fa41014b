package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Entries are NumPy .npy files (format 1.0) holding a 1-D little-endian
// float64 array, the same files numpy.save writes for a list of floats.

var npyMagic = []byte("\x93NUMPY")

const npyAlign = 64

var (
	npyDescrRe = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyOrderRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

func encodeNPY(vec []float64) []byte {
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d,), }", len(vec))
	// magic(6) + version(2) + header_len(2) + header + '\n' must be a multiple of npyAlign.
	pre := len(npyMagic) + 2 + 2
	total := pre + len(header) + 1
	if rem := total % npyAlign; rem != 0 {
		header += strings.Repeat(" ", npyAlign-rem)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Grow(pre + len(header) + 8*len(vec))
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	b := make([]byte, 8)
	for _, v := range vec {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		buf.Write(b)
	}
	return buf.Bytes()
}

func decodeNPY(data []byte) ([]float64, error) {
	if len(data) < len(npyMagic)+4 || !bytes.Equal(data[:len(npyMagic)], npyMagic) {
		return nil, errors.New("missing npy magic")
	}
	major := data[len(npyMagic)]
	pos := len(npyMagic) + 2

	var headerLen int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
	case 2, 3:
		if len(data) < pos+4 {
			return nil, errors.New("truncated npy header length")
		}
		headerLen = int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	if len(data) < pos+headerLen {
		return nil, errors.New("truncated npy header")
	}
	header := string(data[pos : pos+headerLen])
	body := data[pos+headerLen:]

	descr := npyDescrRe.FindStringSubmatch(header)
	if descr == nil {
		return nil, errors.New("npy header has no descr")
	}
	if m := npyOrderRe.FindStringSubmatch(header); m == nil {
		return nil, errors.New("npy header has no fortran_order")
	}
	n, err := parseShape(header)
	if err != nil {
		return nil, err
	}

	var width int
	switch descr[1] {
	case "<f8":
		width = 8
	case "<f4":
		width = 4
	default:
		return nil, fmt.Errorf("unsupported dtype %q", descr[1])
	}
	if n > len(body)/width || len(body) != n*width {
		return nil, fmt.Errorf("npy data is %d bytes, too short or long for shape (%d,) of %s", len(body), n, descr[1])
	}

	vec := make([]float64, n)
	for i := range vec {
		if width == 8 {
			vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
		} else {
			vec[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:])))
		}
	}
	return vec, nil
}

// parseShape accepts 1-D shapes only.
func parseShape(header string) (int, error) {
	m := npyShapeRe.FindStringSubmatch(header)
	if m == nil {
		return 0, errors.New("npy header has no shape")
	}
	var dims []string
	for _, p := range strings.Split(m[1], ",") {
		if p = strings.TrimSpace(p); p != "" {
			dims = append(dims, p)
		}
	}
	if len(dims) != 1 {
		return 0, fmt.Errorf("npy shape (%s) is not 1-D", m[1])
	}
	n, err := strconv.Atoi(dims[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid npy dimension %q", dims[0])
	}
	return n, nil
}
