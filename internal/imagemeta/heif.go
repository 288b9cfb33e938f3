package imagemeta

import (
	"bytes"
	"encoding/binary"
)

// ISOBMFF box types involved in locating the EXIF item of a HEIF container.
var (
	boxMeta = [4]byte{'m', 'e', 't', 'a'}
	boxIinf = [4]byte{'i', 'i', 'n', 'f'}
	boxInfe = [4]byte{'i', 'n', 'f', 'e'}
	boxIloc = [4]byte{'i', 'l', 'o', 'c'}
	itmExif = [4]byte{'E', 'x', 'i', 'f'}
)

// cursor is a bounds-checked reader over a box payload. Any short read flips
// ok to false and subsequent reads return zero values.
type cursor struct {
	data []byte
	pos  int
	ok   bool
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data, ok: true}
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) bytes(n int) []byte {
	if !c.ok || n < 0 || c.pos+n > len(c.data) {
		c.ok = false
		return nil
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) skip(n int) { c.bytes(n) }

func (c *cursor) u8() uint8 {
	b := c.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// uvar reads an n-byte big-endian unsigned value where n is 0, 2, 4 or 8.
func (c *cursor) uvar(n int) uint64 {
	switch n {
	case 0:
		return 0
	case 2:
		return uint64(c.u16())
	case 4:
		return uint64(c.u32())
	case 8:
		b := c.bytes(8)
		if b == nil {
			return 0
		}
		return binary.BigEndian.Uint64(b)
	default:
		c.ok = false
		return 0
	}
}

// nextBox reads one box header and returns its type and payload.
func (c *cursor) nextBox() (typ [4]byte, payload []byte) {
	size := uint64(c.u32())
	tb := c.bytes(4)
	if tb == nil {
		return typ, nil
	}
	copy(typ[:], tb)
	if size == 1 {
		b := c.bytes(8)
		if b == nil {
			return typ, nil
		}
		size = binary.BigEndian.Uint64(b)
		if size < 16 {
			c.ok = false
			return typ, nil
		}
		return typ, c.bytes(int(size - 16))
	}
	if size == 0 { // box extends to end of data
		return typ, c.bytes(c.remaining())
	}
	if size < 8 {
		c.ok = false
		return typ, nil
	}
	return typ, c.bytes(int(size - 8))
}

// ExifFromHEIF walks a HEIF/HEIC container's meta box, resolves the item
// tagged Exif through iinf/iloc, and returns its TIFF blob. The leading
// ExifDataBlock offset field and any "Exif\x00\x00" prefix are stripped so
// the result lines up with ExifFromJPEG output.
func ExifFromHEIF(data []byte) ([]byte, bool) {
	top := newCursor(data)
	var metaPayload []byte
	for top.ok && top.remaining() >= 8 {
		typ, payload := top.nextBox()
		if typ == boxMeta {
			metaPayload = payload
			break
		}
	}
	if metaPayload == nil || len(metaPayload) < 4 {
		return nil, false
	}

	// meta is a FullBox: version and flags precede the child boxes.
	meta := newCursor(metaPayload[4:])
	var iinfPayload, ilocPayload []byte
	for meta.ok && meta.remaining() >= 8 {
		typ, payload := meta.nextBox()
		switch typ {
		case boxIinf:
			iinfPayload = payload
		case boxIloc:
			ilocPayload = payload
		}
	}

	itemID, ok := findExifItemID(iinfPayload)
	if !ok {
		return nil, false
	}
	offset, length, ok := locateItem(ilocPayload, itemID)
	if !ok || offset+length > uint64(len(data)) || length < 4 {
		return nil, false
	}

	payload := data[offset : offset+length]
	tiffOff := uint64(binary.BigEndian.Uint32(payload[:4])) + 4
	if tiffOff >= uint64(len(payload)) {
		return nil, false
	}
	raw := payload[tiffOff:]
	raw = bytes.TrimPrefix(raw, exifHeader)
	if len(raw) < 8 {
		return nil, false
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true
}

func findExifItemID(iinf []byte) (uint32, bool) {
	if len(iinf) < 4 {
		return 0, false
	}
	c := newCursor(iinf)
	version := c.u8()
	c.skip(3)
	if version == 0 {
		c.u16() // entry count
	} else {
		c.u32()
	}

	for c.ok && c.remaining() >= 8 {
		typ, payload := c.nextBox()
		if typ != boxInfe {
			continue
		}
		e := newCursor(payload)
		infeVersion := e.u8()
		e.skip(3)
		if infeVersion < 2 {
			continue
		}
		var itemID uint32
		if infeVersion == 2 {
			itemID = uint32(e.u16())
		} else {
			itemID = e.u32()
		}
		e.u16() // item protection index
		itemType := e.bytes(4)
		if e.ok && itemType != nil && [4]byte(itemType) == itmExif {
			return itemID, true
		}
	}
	return 0, false
}

func locateItem(iloc []byte, itemID uint32) (offset, length uint64, ok bool) {
	if len(iloc) < 8 {
		return 0, 0, false
	}
	c := newCursor(iloc)
	version := c.u8()
	c.skip(3)

	sizes := c.u8()
	offsetSize := int(sizes >> 4)
	lengthSize := int(sizes & 0xf)
	sizes = c.u8()
	baseOffsetSize := int(sizes >> 4)
	indexSize := 0
	if version == 1 || version == 2 {
		indexSize = int(sizes & 0xf)
	}

	var itemCount uint32
	if version < 2 {
		itemCount = uint32(c.u16())
	} else {
		itemCount = c.u32()
	}

	for i := uint32(0); i < itemCount && c.ok; i++ {
		var id uint32
		if version < 2 {
			id = uint32(c.u16())
		} else {
			id = c.u32()
		}
		if version == 1 || version == 2 {
			c.skip(2) // construction method
		}
		c.u16() // data reference index
		base := c.uvar(baseOffsetSize)
		extentCount := int(c.u16())
		for e := 0; e < extentCount && c.ok; e++ {
			if indexSize > 0 {
				c.uvar(indexSize)
			}
			extOffset := c.uvar(offsetSize)
			extLength := c.uvar(lengthSize)
			if id == itemID && e == 0 {
				offset, length, ok = base+extOffset, extLength, true
			}
		}
		if ok {
			return offset, length, c.ok
		}
	}
	return 0, 0, false
}
