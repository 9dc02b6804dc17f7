package jobcodec

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Defaults applied when optional request fields are absent.
const (
	DefaultWidth       = 512
	DefaultHeight      = 512
	DefaultSize        = "512x512"
	DefaultDescription = "professional product photography"
	DefaultStrength    = 0.4
	DefaultRating      = 4.5
	DefaultNumReviews  = 0
)

// TextToImageRequest is the body of POST /api/text-to-image.
type TextToImageRequest struct {
	Prompt string `json:"prompt"`
	Size   any    `json:"size"`
}

// ImageToImageRequest is the body of POST /api/image-to-image.
type ImageToImageRequest struct {
	InputImage  string  `json:"input_image"`
	Description *string `json:"description"`
	Strength    *Number `json:"strength"`
	Size        any     `json:"size"`
}

// ImageToTextRequest is the body of POST /api/image-to-text.
type ImageToTextRequest struct {
	InputImage string `json:"input_image"`
}

// PriceRequest is the body of POST /api/price.
type PriceRequest struct {
	ProductName string  `json:"product_name"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Material    string  `json:"material"`
	Color       string  `json:"color"`
	Rating      *Number `json:"rating"`
	NumReviews  *Number `json:"num_reviews"`
}

// Number accepts a JSON number or a numeric string, the way browser forms
// tend to submit them.
type Number struct {
	Value float64
	Raw   string
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	} else {
		raw = string(data)
	}
	n.Raw = raw
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		n.Valid = false
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// present reports whether the field was supplied with a non-empty value.
func (n *Number) present() bool {
	return n != nil && n.Raw != ""
}
