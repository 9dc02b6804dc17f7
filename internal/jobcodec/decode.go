package jobcodec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"adbridge/internal/domain"
)

// ImageResponse is returned by both image modes.
type ImageResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image"`
}

// DescriptionResponse is returned by image-to-text.
type DescriptionResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
}

const descriptionSchemaJSON = `{
  "type": "object",
  "properties": {
    "description": {"type": "string"}
  }
}`

const priceSchemaJSON = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "price":   {"type": ["number", "null"]},
    "range":   {
      "type": ["array", "null"],
      "items": {"type": "number"},
      "maxItems": 2
    },
    "error":   {"type": ["string", "null"]}
  }
}`

var (
	descriptionSchema = mustSchema(descriptionSchemaJSON)
	priceSchema       = mustSchema(priceSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("jobcodec: invalid schema: %v", err))
	}
	return s
}

// DecodeImage base64-encodes the artifact bytes for transport.
func DecodeImage(res *domain.Result) ImageResponse {
	return ImageResponse{Success: true, Image: base64.StdEncoding.EncodeToString(res.Data)}
}

// DecodeDescription extracts the description field of an image-to-text
// artifact. A missing description yields an empty string.
func DecodeDescription(res *domain.Result) (DescriptionResponse, error) {
	if err := validate(res, descriptionSchema); err != nil {
		return DescriptionResponse{}, err
	}
	var doc struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(res.Data, &doc); err != nil {
		return DescriptionResponse{}, &domain.DecodeError{JobID: res.JobID, Err: err}
	}
	return DescriptionResponse{Success: true, Description: doc.Description}, nil
}

// DecodePrice returns the worker's price document unchanged once it has been
// checked against the expected shape.
func DecodePrice(res *domain.Result) (json.RawMessage, error) {
	if err := validate(res, priceSchema); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSpace(res.Data)), nil
}

func validate(res *domain.Result, schema *gojsonschema.Schema) error {
	if !json.Valid(res.Data) {
		return &domain.DecodeError{JobID: res.JobID, Err: errors.New("result is not valid JSON")}
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(res.Data))
	if err != nil {
		return &domain.DecodeError{JobID: res.JobID, Err: err}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &domain.DecodeError{JobID: res.JobID, Err: errors.New(strings.Join(msgs, "; "))}
	}
	return nil
}
