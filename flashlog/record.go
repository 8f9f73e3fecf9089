package flashlog

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// On-medium record layout, byte-packed:
//
//	kind(1) | id(8 LE) | payload length(2 LE) | crc32(4 LE) | payload
//
// The CRC covers kind, id, length, and payload. A kind byte equal to
// EraseValue marks the end of the written region in a sector; any other
// unknown kind, or a CRC mismatch, marks the rest of the sector as dirty.
const (
	kindData      = 0x2A
	kindTombstone = 0x54

	headerSize = 15

	// maxRecordPayload is the largest payload the length field can carry.
	maxRecordPayload = math.MaxUint16
)

func encodeRecord(kind byte, id uint64, payload []byte) []byte {
	rec := make([]byte, headerSize+len(payload))
	rec[0] = kind
	binary.LittleEndian.PutUint64(rec[1:], id)
	binary.LittleEndian.PutUint16(rec[9:], uint16(len(payload)))
	copy(rec[headerSize:], payload)

	crc := crc32.NewIEEE()
	crc.Write(rec[:11])
	crc.Write(payload)
	binary.LittleEndian.PutUint32(rec[11:], crc.Sum32())

	return rec
}

func decodeHeader(hdr []byte) (kind byte, id uint64, payloadLen int, sum uint32) {
	kind = hdr[0]
	id = binary.LittleEndian.Uint64(hdr[1:])
	payloadLen = int(binary.LittleEndian.Uint16(hdr[9:]))
	sum = binary.LittleEndian.Uint32(hdr[11:])
	return kind, id, payloadLen, sum
}

func recordCRC(hdr, payload []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write(hdr[:11])
	crc.Write(payload)
	return crc.Sum32()
}
