package imagemeta

import (
	"encoding/binary"
	"errors"
	"time"
)

// TIFF IFD0 tags and field types used by the normalization patch.
const (
	tagOrientation = 0x0112
	tagDateTime    = 0x0132

	typeASCII = 2
	typeShort = 3
)

var errMalformedTIFF = errors.New("malformed tiff structure")

// ifdEntry is one 12-byte IFD directory entry located inside a raw blob.
type ifdEntry struct {
	typ    uint16
	count  uint32
	// valueOff is the absolute blob offset of the entry's value field. For
	// values wider than 4 bytes it has already been resolved through the
	// offset indirection.
	valueOff int
}

// NormalizeHEIC applies the HEIC upload heuristic to a raw TIFF blob: when
// IFD0 carries a DateTime that parses against the EXIF timestamp pattern, the
// Orientation entry (if present) is forced to "no transform" and DateTime is
// rewritten through the same pattern. Tags are patched in place in a copy of
// the blob; orientation correction itself is deferred to the pipeline's
// explicit EXIF-transpose step.
func NormalizeHEIC(raw []byte) ([]byte, bool, error) {
	entries, order, err := readIFD0(raw)
	if err != nil {
		return nil, false, err
	}

	dt, ok := entries[tagDateTime]
	if !ok || dt.typ != typeASCII || dt.count == 0 {
		return raw, false, nil
	}
	end := dt.valueOff + int(dt.count)
	if end > len(raw) {
		return nil, false, errMalformedTIFF
	}
	value := raw[dt.valueOff:end]
	text := string(trimNUL(value))

	parsed, err := time.Parse(DateTimeLayout, text)
	if err != nil {
		// Timestamp in an unexpected shape: leave the blob untouched,
		// matching the "skip the heuristic" contract.
		return raw, false, nil
	}

	patched := make([]byte, len(raw))
	copy(patched, raw)

	rewritten := parsed.Format(DateTimeLayout)
	copy(patched[dt.valueOff:], rewritten)
	if int(dt.count) > len(rewritten) {
		patched[dt.valueOff+len(rewritten)] = 0
	}

	if o, ok := entries[tagOrientation]; ok && o.typ == typeShort && o.count == 1 {
		order.PutUint16(patched[o.valueOff:], OrientationNone)
	}

	return patched, true, nil
}

// readIFD0 walks the first image directory of a raw TIFF blob and returns its
// entries by tag along with the blob's byte order.
func readIFD0(raw []byte) (map[uint16]ifdEntry, binary.ByteOrder, error) {
	if len(raw) < 8 {
		return nil, nil, errMalformedTIFF
	}

	var order binary.ByteOrder
	switch {
	case raw[0] == 'I' && raw[1] == 'I':
		order = binary.LittleEndian
	case raw[0] == 'M' && raw[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, nil, errMalformedTIFF
	}
	if order.Uint16(raw[2:4]) != 42 {
		return nil, nil, errMalformedTIFF
	}

	ifdOff := int(order.Uint32(raw[4:8]))
	if ifdOff+2 > len(raw) {
		return nil, nil, errMalformedTIFF
	}
	count := int(order.Uint16(raw[ifdOff : ifdOff+2]))
	base := ifdOff + 2
	if base+count*12 > len(raw) {
		return nil, nil, errMalformedTIFF
	}

	entries := make(map[uint16]ifdEntry, count)
	for i := 0; i < count; i++ {
		off := base + i*12
		tag := order.Uint16(raw[off : off+2])
		typ := order.Uint16(raw[off+2 : off+4])
		n := order.Uint32(raw[off+4 : off+8])

		valueOff := off + 8
		if fieldSize(typ)*int(n) > 4 {
			valueOff = int(order.Uint32(raw[off+8 : off+12]))
			if valueOff >= len(raw) {
				return nil, nil, errMalformedTIFF
			}
		}
		entries[tag] = ifdEntry{typ: typ, count: n, valueOff: valueOff}
	}
	return entries, order, nil
}

func fieldSize(typ uint16) int {
	switch typ {
	case 1, 2, 6, 7: // byte, ascii, sbyte, undefined
		return 1
	case 3, 8: // short, sshort
		return 2
	case 4, 9, 11: // long, slong, float
		return 4
	case 5, 10, 12: // rational, srational, double
		return 8
	default:
		return 1
	}
}

func trimNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
