package x11

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const unknownField = "unknown"

var edidHeader = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// EDIDInfo holds the identity fields of an EDID base block.
type EDIDInfo struct {
	Vendor  string
	Product string
	Serial  string
}

// ParseEDID extracts the PNP vendor, the monitor name (or product code) and
// the serial string (or serial number) from a 128 byte EDID base block.
func ParseEDID(data []byte) (EDIDInfo, error) {
	if len(data) < 128 {
		return EDIDInfo{}, fmt.Errorf("edid too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], edidHeader) {
		return EDIDInfo{}, errors.New("edid header mismatch")
	}

	info := EDIDInfo{
		Vendor:  pnpID(binary.BigEndian.Uint16(data[8:10])),
		Product: fmt.Sprintf("0x%04x", binary.LittleEndian.Uint16(data[10:12])),
		Serial:  fmt.Sprintf("0x%08x", binary.LittleEndian.Uint32(data[12:16])),
	}

	for off := 54; off+18 <= 126; off += 18 {
		d := data[off : off+18]
		if d[0] != 0 || d[1] != 0 || d[2] != 0 {
			continue
		}
		text := descriptorText(d[5:18])
		if text == "" {
			continue
		}
		switch d[3] {
		case 0xfc:
			info.Product = text
		case 0xff:
			info.Serial = text
		}
	}
	return info, nil
}

func pnpID(v uint16) string {
	letters := []byte{
		byte((v>>10)&0x1f) + 'A' - 1,
		byte((v>>5)&0x1f) + 'A' - 1,
		byte(v&0x1f) + 'A' - 1,
	}
	for _, c := range letters {
		if c < 'A' || c > 'Z' {
			return unknownField
		}
	}
	return string(letters)
}

func descriptorText(b []byte) string {
	if i := bytes.IndexByte(b, 0x0a); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
