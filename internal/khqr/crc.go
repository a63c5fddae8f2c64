package khqr

import (
	"fmt"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// checksum returns the upper-case hex CRC-16/CCITT-FALSE of s.
func checksum(s string) string {
	return fmt.Sprintf("%04X", crc16.Checksum([]byte(s), crcTable))
}
