package blob

import (
	"encoding/binary"
	"hash/crc32"
)

// Physical value framing: payload | crc32c(payload).
// The checksum guards against torn or corrupt records; the payload itself
// stays verbatim so chunk reassembly is plain concatenation.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeValue(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(payload, castagnoli))
	return append(out, crcb[:]...)
}

func decodeValue(b []byte) ([]byte, bool) {
	if len(b) < 4 {
		return nil, false
	}
	payload := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(payload, castagnoli) != expect {
		return nil, false
	}
	return append([]byte(nil), payload...), true
}
