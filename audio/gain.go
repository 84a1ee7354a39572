package audio

import "encoding/binary"

// amplify scales samples by gain with clipping and encodes them as
// little-endian PCM16.
func amplify(samples []int16, gain int32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}
