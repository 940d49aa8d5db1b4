package translator

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// encodeFloat32Base64 packs the vector as little-endian float32 values, the
// layout OpenAI clients expect for encoding_format=base64.
func encodeFloat32Base64(vector []float32) string {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}
