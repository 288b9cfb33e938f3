package decoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/strukturag/libheif/go/heif"

	"github.com/pixeldesk/pixeldesk/internal/imagemeta"
)

// decodeHEIC runs the dedicated HEIF codec path: decode the primary item to a
// raster via libheif, extract and normalize the container's EXIF block, then
// re-encode to an in-memory JPEG with the (possibly patched) EXIF embedded and
// re-open that buffer as the working image. Orientation correction is NOT done
// here; the pipeline's EXIF-transpose step owns it.
func decodeHEIC(data []byte) (*Decoded, error) {
	heifCtx, err := heif.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create heif context: %w", err)
	}
	if err := heifCtx.ReadFromMemory(data); err != nil {
		return nil, fmt.Errorf("read heic container: %w", err)
	}
	handle, err := heifCtx.GetPrimaryImageHandle()
	if err != nil {
		return nil, fmt.Errorf("locate primary heic item: %w", err)
	}
	heifImg, err := handle.DecodeImage(heif.ColorspaceUndefined, heif.ChromaUndefined, nil)
	if err != nil {
		return nil, fmt.Errorf("decode heic pixels: %w", err)
	}
	raster, err := heifImg.GetImage()
	if err != nil {
		return nil, fmt.Errorf("convert heic raster: %w", err)
	}

	var warnings []string
	var rawExif []byte
	if raw, ok := imagemeta.ExifFromHEIF(data); ok {
		patched, _, err := imagemeta.NormalizeHEIC(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("error parsing EXIF metadata: %v", err))
		} else {
			rawExif = patched
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, nil); err != nil {
		return nil, fmt.Errorf("encode intermediate jpeg: %w", err)
	}
	jpegBytes := buf.Bytes()

	if rawExif != nil {
		embedded, err := imagemeta.EmbedJPEG(jpegBytes, rawExif)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not embed EXIF block: %v", err))
		} else {
			jpegBytes = embedded
		}
	}

	working, _, err := image.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return nil, fmt.Errorf("reopen intermediate jpeg: %w", err)
	}

	d := &Decoded{
		Image:    working,
		Mode:     colorMode(working),
		Format:   "heic",
		Warnings: warnings,
	}
	d.attachExif(jpegBytes)
	d.DPI = imagemeta.DPI(jpegBytes, d.EXIF)
	return d, nil
}
