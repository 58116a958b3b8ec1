package segment

import (
	"fmt"
	"hash/crc32"
)

// Segments carry a CRC32 (IEEE) checksum of the body. CRC32 detects
// accidental storage corruption; it is not tamper protection.

var crcTable = crc32.MakeTable(crc32.IEEE)

func computeChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func crc32Update(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crcTable, data)
}

// ChecksumMismatchError is returned when body verification fails on open.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("segment: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}
