package cache

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeNPY_Header(t *testing.T) {
	data := encodeNPY([]float64{1, 2, 3})

	require.Equal(t, "\x93NUMPY", string(data[:6]))
	require.Equal(t, byte(1), data[6])
	require.Equal(t, byte(0), data[7])

	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	require.Zero(t, (10+headerLen)%64, "data must start on a 64-byte boundary")
	header := string(data[10 : 10+headerLen])
	require.Contains(t, header, "'descr': '<f8'")
	require.Contains(t, header, "'shape': (3,)")
	require.Equal(t, byte('\n'), header[len(header)-1])
	require.Len(t, data, 10+headerLen+24)
}

// numpy.save(f, np.array([0.5, -1.25])) output.
func TestDecodeNPY_NumpyWritten(t *testing.T) {
	header := "{'descr': '<f8', 'fortran_order': False, 'shape': (2,), }"
	for len(header)+11 < 128 {
		header += " "
	}
	header += "\n"

	data := []byte("\x93NUMPY\x01\x00")
	data = binary.LittleEndian.AppendUint16(data, uint16(len(header)))
	data = append(data, header...)
	data = binary.LittleEndian.AppendUint64(data, math.Float64bits(0.5))
	data = binary.LittleEndian.AppendUint64(data, math.Float64bits(-1.25))

	vec, err := decodeNPY(data)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, -1.25}, vec)
}

func TestDecodeNPY_Float32(t *testing.T) {
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (1,), }\n"
	data := []byte("\x93NUMPY\x01\x00")
	data = binary.LittleEndian.AppendUint16(data, uint16(len(header)))
	data = append(data, header...)
	data = binary.LittleEndian.AppendUint32(data, math.Float32bits(0.25))

	vec, err := decodeNPY(data)
	require.NoError(t, err)
	require.Equal(t, []float64{0.25}, vec)
}

func TestDecodeNPY_Rejects(t *testing.T) {
	build := func(header string, body int) []byte {
		data := []byte("\x93NUMPY\x01\x00")
		data = binary.LittleEndian.AppendUint16(data, uint16(len(header)))
		data = append(data, header...)
		return append(data, make([]byte, body)...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("\x93NUMPX\x01\x00\x00\x00")},
		{"2-D shape", build("{'descr': '<f8', 'fortran_order': False, 'shape': (2, 2), }\n", 32)},
		{"int dtype", build("{'descr': '<i8', 'fortran_order': False, 'shape': (1,), }\n", 8)},
		{"big endian", build("{'descr': '>f8', 'fortran_order': False, 'shape': (1,), }\n", 8)},
		{"size mismatch", build("{'descr': '<f8', 'fortran_order': False, 'shape': (3,), }\n", 16)},
		{"overflowing shape", build("{'descr': '<f8', 'fortran_order': False, 'shape': (2305843009213693952,), }\n", 0)},
		{"no shape", build("{'descr': '<f8', 'fortran_order': False, }\n", 8)},
		{"header overrun", []byte("\x93NUMPY\x01\x00\xff\x00{")},
		{"version 9", []byte("\x93NUMPY\x09\x00\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeNPY(tt.data)
			require.Error(t, err)
		})
	}
}
