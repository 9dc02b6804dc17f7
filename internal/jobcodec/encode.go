// Package jobcodec turns inbound request bodies into job records and worker
// artifacts into response payloads.
package jobcodec

import (
	"math"
	"strings"

	"adbridge/internal/domain"
	"adbridge/internal/i18n"
)

// EncodeTextToImage validates a text-to-image request. The returned job has
// no ID yet; the caller assigns one once validation has passed.
func EncodeTextToImage(req TextToImageRequest) (domain.Job, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return domain.Job{}, domain.NewValidationError("prompt", i18n.MsgPromptRequired)
	}
	w, h := ParseSize(req.Size)
	return domain.Job{
		Mode: domain.ModeTextToImage,
		Payload: map[string]any{
			"prompt": prompt,
			"width":  w,
			"height": h,
		},
	}, nil
}

// EncodeImageToImage validates an image-to-image request and decodes its
// input image.
func EncodeImageToImage(req ImageToImageRequest) (domain.Job, error) {
	input, err := decodeInput(req.InputImage)
	if err != nil {
		return domain.Job{}, err
	}
	description := DefaultDescription
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}
	strength := DefaultStrength
	if req.Strength.present() {
		if !req.Strength.Valid {
			return domain.Job{}, domain.NewValidationError("strength", i18n.MsgNotANumber, "strength")
		}
		strength = req.Strength.Value
	}
	w, h := ParseSize(req.Size)
	return domain.Job{
		Mode: domain.ModeImageToImage,
		Payload: map[string]any{
			"prompt":   description,
			"strength": strength,
			"width":    w,
			"height":   h,
		},
		Input: input,
	}, nil
}

// EncodeImageToText validates an image-to-text request.
func EncodeImageToText(req ImageToTextRequest) (domain.Job, error) {
	input, err := decodeInput(req.InputImage)
	if err != nil {
		return domain.Job{}, err
	}
	return domain.Job{
		Mode:    domain.ModeImageToText,
		Payload: map[string]any{},
		Input:   input,
	}, nil
}

// EncodePrice validates a price recommendation request.
func EncodePrice(req PriceRequest) (domain.Job, error) {
	required := []struct {
		field string
		value string
	}{
		{"product_name", req.ProductName},
		{"brand", req.Brand},
		{"category", req.Category},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.Job{}, domain.NewValidationError(r.field, i18n.MsgFieldRequired, r.field)
		}
	}

	rating := DefaultRating
	if req.Rating.present() {
		if !req.Rating.Valid {
			return domain.Job{}, domain.NewValidationError("rating", i18n.MsgNotANumber, "rating")
		}
		rating = req.Rating.Value
	}
	numReviews := DefaultNumReviews
	if req.NumReviews.present() {
		if !req.NumReviews.Valid {
			return domain.Job{}, domain.NewValidationError("num_reviews", i18n.MsgNotANumber, "num_reviews")
		}
		v := req.NumReviews.Value
		if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return domain.Job{}, domain.NewValidationError("num_reviews", i18n.MsgNotAWholeNumber, "num_reviews")
		}
		numReviews = int(v)
	}

	return domain.Job{
		Mode: domain.ModePrice,
		Payload: map[string]any{
			"product_name": strings.TrimSpace(req.ProductName),
			"brand":        strings.TrimSpace(req.Brand),
			"category":     strings.TrimSpace(req.Category),
			"material":     strings.TrimSpace(req.Material),
			"color":        strings.TrimSpace(req.Color),
			"rating":       rating,
			"num_reviews":  numReviews,
		},
	}, nil
}

func decodeInput(dataURL string) ([]byte, error) {
	if strings.TrimSpace(dataURL) == "" {
		return nil, domain.NewValidationError("input_image", i18n.MsgImageRequired)
	}
	data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, &domain.ValidationError{Field: "input_image", Message: i18n.MsgInvalidImage, Cause: err}
	}
	return data, nil
}
