package imagemeta

import (
	"bytes"
	"encoding/binary"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

const metersPerInch = 0.0254

// DPI derives the horizontal print density of an encoded image, looking at
// the JFIF APP0 density for JPEG, the pHYs chunk for PNG, and falling back to
// the EXIF XResolution tag. Returns 0 when no density metadata exists.
func DPI(data []byte, meta *EXIF) float64 {
	if dpi := jfifDPI(data); dpi > 0 {
		return dpi
	}
	if dpi := physDPI(data); dpi > 0 {
		return dpi
	}
	if meta != nil {
		return meta.XResolutionDPI()
	}
	return 0
}

func jfifDPI(data []byte) float64 {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return 0
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != markerStart {
			return 0
		}
		marker := data[pos+1]
		if marker == markerSOS {
			return 0
		}
		size := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if size < 2 || pos+2+size > len(data) {
			return 0
		}
		payload := data[pos+4 : pos+2+size]
		if marker == 0xe0 && len(payload) >= 12 && bytes.HasPrefix(payload, []byte("JFIF\x00")) {
			units := payload[7]
			density := float64(binary.BigEndian.Uint16(payload[8:10]))
			switch units {
			case 1: // dots per inch
				return density
			case 2: // dots per centimeter
				return density * 2.54
			}
			return 0
		}
		pos += 2 + size
	}
	return 0
}

func physDPI(data []byte) float64 {
	if !bytes.HasPrefix(data, pngSignature) {
		return 0
	}
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		body := pos + 8
		if size < 0 || body+size+4 > len(data) {
			return 0
		}
		switch typ {
		case "pHYs":
			if size < 9 {
				return 0
			}
			ppuX := binary.BigEndian.Uint32(data[body : body+4])
			if data[body+8] == 1 { // pixels per meter
				return float64(ppuX) * metersPerInch
			}
			return 0
		case "IDAT", "IEND":
			return 0
		}
		pos = body + size + 4
	}
	return 0
}
