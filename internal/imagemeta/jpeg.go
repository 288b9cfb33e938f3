package imagemeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	markerStart = 0xff
	markerSOI   = 0xd8
	markerSOS   = 0xda
	markerAPP1  = 0xe1
)

var exifHeader = []byte("Exif\x00\x00")

// ExifFromJPEG scans the header segments of a JPEG stream for an EXIF APP1
// block and returns the contained TIFF blob.
func ExifFromJPEG(data []byte) ([]byte, bool) {
	if len(data) < 2 || data[0] != markerStart || data[1] != markerSOI {
		return nil, false
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != markerStart {
			return nil, false
		}
		marker := data[pos+1]
		if marker == markerSOS {
			return nil, false
		}
		size := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if size < 2 || pos+2+size > len(data) {
			return nil, false
		}
		payload := data[pos+4 : pos+2+size]
		if marker == markerAPP1 && bytes.HasPrefix(payload, exifHeader) {
			raw := make([]byte, len(payload)-len(exifHeader))
			copy(raw, payload[len(exifHeader):])
			return raw, true
		}
		pos += 2 + size
	}
	return nil, false
}

// EmbedJPEG inserts raw as an EXIF APP1 segment directly after the SOI marker
// of an encoded JPEG, returning the reassembled stream.
func EmbedJPEG(jpegData, raw []byte) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, errors.New("not a jpeg stream")
	}
	payloadLen := len(exifHeader) + len(raw)
	if payloadLen+2 > 0xffff {
		return nil, fmt.Errorf("exif block too large for an APP1 segment: %d bytes", payloadLen)
	}

	var out bytes.Buffer
	out.Grow(len(jpegData) + payloadLen + 4)
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	out.WriteByte(markerStart)
	out.WriteByte(markerAPP1)
	out.WriteByte(byte((payloadLen + 2) >> 8))
	out.WriteByte(byte(payloadLen + 2))
	out.Write(exifHeader)
	out.Write(raw)
	out.Write(jpegData[2:])
	return out.Bytes(), nil
}
