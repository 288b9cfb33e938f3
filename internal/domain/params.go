package domain

import (
	"fmt"
	"time"
)

// AdjustmentParams is the flat set of controls driving one render. Fields at
// their identity values cause the corresponding pipeline step to be skipped.
type AdjustmentParams struct {
	RotateDegrees int     `json:"rotate_degrees"`
	ScalePercent  int     `json:"scale_percent"`
	Brightness    float64 `json:"brightness"`
	Contrast      float64 `json:"contrast"`
	Sharpness     float64 `json:"sharpness"`
	Saturation    float64 `json:"saturation"`

	Blur       bool    `json:"blur"`
	BlurRadius float64 `json:"blur_radius"`
	EdgeDetect bool    `json:"edge_detect"`
	Invert     bool    `json:"invert"`
	Grayscale  bool    `json:"grayscale"`

	Posterize         bool `json:"posterize"`
	PosterizeBits     int  `json:"posterize_bits"`
	Solarize          bool `json:"solarize"`
	SolarizeThreshold int  `json:"solarize_threshold"`

	ExifTranspose bool `json:"exif_transpose"`
}

// DefaultParams returns the identity parameter set. Decoding a request body
// over this value gives merge semantics: fields the client omits keep their
// identity (or default-on, for exif_transpose) values.
func DefaultParams() AdjustmentParams {
	return AdjustmentParams{
		ScalePercent:      100,
		Brightness:        1.0,
		Contrast:          1.0,
		Sharpness:         1.0,
		Saturation:        1.0,
		BlurRadius:        2.0,
		PosterizeBits:     4,
		SolarizeThreshold: 128,
		ExifTranspose:     true,
	}
}

func (p AdjustmentParams) Validate() error {
	if p.RotateDegrees < 0 || p.RotateDegrees > 359 {
		return fmt.Errorf("rotate_degrees must be in [0, 359], got %d", p.RotateDegrees)
	}
	if p.ScalePercent < 1 || p.ScalePercent > 1000 {
		return fmt.Errorf("scale_percent must be in [1, 1000], got %d", p.ScalePercent)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"brightness", p.Brightness},
		{"contrast", p.Contrast},
		{"sharpness", p.Sharpness},
		{"saturation", p.Saturation},
	} {
		if f.value < 0 || f.value > 2 {
			return fmt.Errorf("%s factor must be in [0, 2], got %g", f.name, f.value)
		}
	}
	if p.Blur && (p.BlurRadius <= 0 || p.BlurRadius > 10) {
		return fmt.Errorf("blur_radius must be in (0, 10], got %g", p.BlurRadius)
	}
	if p.Posterize && (p.PosterizeBits < 1 || p.PosterizeBits > 8) {
		return fmt.Errorf("posterize_bits must be in [1, 8], got %d", p.PosterizeBits)
	}
	if p.Solarize && (p.SolarizeThreshold < 0 || p.SolarizeThreshold > 255) {
		return fmt.Errorf("solarize_threshold must be in [0, 255], got %d", p.SolarizeThreshold)
	}
	return nil
}

// SourceImage is one uploaded payload held for the lifetime of the session.
type SourceImage struct {
	ID         string
	Filename   string
	Ext        string
	Data       []byte
	UploadedAt time.Time
}
