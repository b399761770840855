package store

import (
	"encoding/binary"
	"fmt"

	"github.com/freeeve/chessexp/internal/graph"
)

// Record encoding: 24 bytes, little-endian
// - Key (uint64):   bytes 0-7
// - Move (uint32):  bytes 8-11
// - Value (int32):  bytes 12-15
// - Depth (uint32): bytes 16-19
// - Reserved:       bytes 20-23, written as zero and ignored on read

// EncodeRecord writes r into buf, which must hold at least RecordSize bytes.
func EncodeRecord(buf []byte, r Record) {
	_ = buf[RecordSize-1]
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.Key))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.Move))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.Value))
	binary.LittleEndian.PutUint32(buf[16:20], r.Depth)
	binary.LittleEndian.PutUint32(buf[20:24], 0)
}

// AppendRecord appends the encoding of r to dst.
func AppendRecord(dst []byte, r Record) []byte {
	var buf [RecordSize]byte
	EncodeRecord(buf[:], r)
	return append(dst, buf[:]...)
}

// DecodeRecord decodes a record from the first RecordSize bytes of data.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) < RecordSize {
		return Record{}, fmt.Errorf("record too short: got %d bytes, need %d", len(data), RecordSize)
	}
	return Record{
		Key:   graph.Fingerprint(binary.LittleEndian.Uint64(data[0:8])),
		Move:  graph.Move(binary.LittleEndian.Uint32(data[8:12])),
		Value: int32(binary.LittleEndian.Uint32(data[12:16])),
		Depth: binary.LittleEndian.Uint32(data[16:20]),
	}, nil
}

// payloadCount returns the number of records in a file of the given size,
// or false if the size cannot hold a signature plus whole records.
func payloadCount(fileSize int64) (int64, bool) {
	payload := fileSize - int64(SignatureLen)
	if payload < 0 || payload%RecordSize != 0 {
		return 0, false
	}
	return payload / RecordSize, true
}
