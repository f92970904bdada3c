package retrieval

import (
	"encoding/binary"
	"math"
)

// encodeVector packs a float32 vector into the little-endian byte blob
// RediSearch expects for VECTOR fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))

	for i, value := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(value))
	}

	return buf
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)

	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}

	return vector
}
