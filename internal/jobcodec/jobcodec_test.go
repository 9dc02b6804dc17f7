package jobcodec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbridge/internal/domain"
	"adbridge/internal/i18n"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   any
		w, h int
	}{
		{"800x600", 800, 600},
		{"512x512", 512, 512},
		{" 1024 x 768 ", 1024, 768},
		{"abc", 512, 512},
		{"800X600", 512, 512},
		{"800x", 512, 512},
		{"800x600x3", 512, 512},
		{"-5x100", 512, 512},
		{"", 512, 512},
		{nil, 512, 512},
		{float64(800), 512, 512},
	}
	for _, tc := range tests {
		w, h := ParseSize(tc.in)
		assert.Equal(t, tc.w, w, "%v", tc.in)
		assert.Equal(t, tc.h, h, "%v", tc.in)
	}
}

func TestParseDataURL(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	b64 := base64.StdEncoding.EncodeToString(raw)

	got, err := ParseDataURL("data:image/png;base64," + b64)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = ParseDataURL("data:image/png;base64," + base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = ParseDataURL(b64)
	assert.Error(t, err, "missing header separator")

	_, err = ParseDataURL("data:image/png;base64,")
	assert.Error(t, err, "empty payload")

	_, err = ParseDataURL("data:image/png;base64,***")
	assert.Error(t, err)
}

func TestEncodeTextToImage(t *testing.T) {
	job, err := EncodeTextToImage(TextToImageRequest{Prompt: "  red shoe ", Size: "800x600"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeTextToImage, job.Mode)
	assert.Equal(t, "red shoe", job.Payload["prompt"])
	assert.Equal(t, 800, job.Payload["width"])
	assert.Equal(t, 600, job.Payload["height"])
	assert.Empty(t, job.Input)

	job, err = EncodeTextToImage(TextToImageRequest{Prompt: "x", Size: "abc"})
	require.NoError(t, err)
	assert.Equal(t, 512, job.Payload["width"])
	assert.Equal(t, 512, job.Payload["height"])

	_, err = EncodeTextToImage(TextToImageRequest{Prompt: "   "})
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "prompt", vErr.Field)
}

func TestEncodeImageToImage(t *testing.T) {
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pixels"))

	var req ImageToImageRequest
	require.NoError(t, json.Unmarshal([]byte(`{"input_image":"`+img+`"}`), &req))
	job, err := EncodeImageToImage(req)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeImageToImage, job.Mode)
	assert.Equal(t, []byte("pixels"), job.Input)
	assert.Equal(t, DefaultDescription, job.Payload["prompt"])
	assert.Equal(t, 0.4, job.Payload["strength"])
	assert.Equal(t, 512, job.Payload["width"])

	require.NoError(t, json.Unmarshal([]byte(`{"input_image":"`+img+`","description":"studio shot","strength":"0.75","size":"640x480"}`), &req))
	job, err = EncodeImageToImage(req)
	require.NoError(t, err)
	assert.Equal(t, "studio shot", job.Payload["prompt"])
	assert.Equal(t, 0.75, job.Payload["strength"])
	assert.Equal(t, 640, job.Payload["width"])
	assert.Equal(t, 480, job.Payload["height"])

	require.NoError(t, json.Unmarshal([]byte(`{"input_image":"`+img+`","strength":"strong"}`), &req))
	_, err = EncodeImageToImage(req)
	assert.Error(t, err)

	_, err = EncodeImageToImage(ImageToImageRequest{})
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "input_image", vErr.Field)

	_, err = EncodeImageToImage(ImageToImageRequest{InputImage: "no-comma"})
	require.True(t, errors.As(err, &vErr))
}

func TestEncodeImageToText(t *testing.T) {
	img := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg"))
	job, err := EncodeImageToText(ImageToTextRequest{InputImage: img})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeImageToText, job.Mode)
	assert.Equal(t, []byte("jpeg"), job.Input)
	assert.Empty(t, job.Payload)

	_, err = EncodeImageToText(ImageToTextRequest{InputImage: "data:image/png;base64,"})
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestEncodePrice(t *testing.T) {
	var req PriceRequest
	require.NoError(t, json.Unmarshal([]byte(`{"product_name":"Runner","brand":"Acme","category":"shoes"}`), &req))
	job, err := EncodePrice(req)
	require.NoError(t, err)
	assert.Equal(t, domain.ModePrice, job.Mode)
	assert.Equal(t, "", job.Payload["material"])
	assert.Equal(t, "", job.Payload["color"])
	assert.Equal(t, 4.5, job.Payload["rating"])
	assert.Equal(t, 0, job.Payload["num_reviews"])

	require.NoError(t, json.Unmarshal([]byte(`{"product_name":"Runner","brand":"Acme","category":"shoes","material":"mesh","rating":3.9,"num_reviews":"120"}`), &req))
	job, err = EncodePrice(req)
	require.NoError(t, err)
	assert.Equal(t, "mesh", job.Payload["material"])
	assert.Equal(t, 3.9, job.Payload["rating"])
	assert.Equal(t, 120, job.Payload["num_reviews"])

	for _, body := range []string{
		`{"brand":"Acme","category":"shoes"}`,
		`{"product_name":"Runner","category":"shoes"}`,
		`{"product_name":"Runner","brand":" ","category":"shoes"}`,
		`{"product_name":"Runner","brand":"Acme"}`,
	} {
		var r PriceRequest
		require.NoError(t, json.Unmarshal([]byte(body), &r))
		_, err := EncodePrice(r)
		var vErr *domain.ValidationError
		assert.True(t, errors.As(err, &vErr), body)
	}
}

func TestEncodeRejectsNonFiniteNumbers(t *testing.T) {
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pixels"))
	price := `"product_name":"Runner","brand":"Acme","category":"shoes"`

	tests := []struct {
		name  string
		field string
		body  string
		image bool
	}{
		{"rating NaN", "rating", `{` + price + `,"rating":"NaN"}`, false},
		{"rating Inf", "rating", `{` + price + `,"rating":"Inf"}`, false},
		{"rating -Infinity", "rating", `{` + price + `,"rating":"-Infinity"}`, false},
		{"rating overflow", "rating", `{` + price + `,"rating":"1e400"}`, false},
		{"num_reviews NaN", "num_reviews", `{` + price + `,"num_reviews":"nan"}`, false},
		{"num_reviews +Inf", "num_reviews", `{` + price + `,"num_reviews":"+Inf"}`, false},
		{"strength NaN", "strength", `{"input_image":"` + img + `","strength":"NaN"}`, true},
		{"strength Infinity", "strength", `{"input_image":"` + img + `","strength":"Infinity"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.image {
				var req ImageToImageRequest
				require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
				_, err = EncodeImageToImage(req)
			} else {
				var req PriceRequest
				require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
				_, err = EncodePrice(req)
			}
			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, i18n.MsgNotANumber, vErr.Message)
		})
	}
}

func TestEncodePriceNumReviewsRange(t *testing.T) {
	base := `"product_name":"Runner","brand":"Acme","category":"shoes"`

	for _, raw := range []string{`2.5`, `-1`, `"-3"`, `1e30`, `"2147483648"`} {
		t.Run(raw, func(t *testing.T) {
			var req PriceRequest
			require.NoError(t, json.Unmarshal([]byte(`{`+base+`,"num_reviews":`+raw+`}`), &req))
			_, err := EncodePrice(req)
			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, "num_reviews", vErr.Field)
			assert.Equal(t, i18n.MsgNotAWholeNumber, vErr.Message)
		})
	}

	for raw, want := range map[string]int{`0`: 0, `"42"`: 42, `1e3`: 1000, `2147483647`: 2147483647} {
		var req PriceRequest
		require.NoError(t, json.Unmarshal([]byte(`{`+base+`,"num_reviews":`+raw+`}`), &req))
		job, err := EncodePrice(req)
		require.NoError(t, err, raw)
		assert.Equal(t, want, job.Payload["num_reviews"], raw)
	}
}

func TestDecodeImage(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	resp := DecodeImage(&domain.Result{JobID: "1", Kind: domain.ResultImage, Data: data})
	assert.True(t, resp.Success)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), resp.Image)
}

func TestDecodeDescription(t *testing.T) {
	resp, err := DecodeDescription(&domain.Result{JobID: "1", Data: []byte(`{"description":"a red shoe"}`)})
	require.NoError(t, err)
	assert.Equal(t, DescriptionResponse{Success: true, Description: "a red shoe"}, resp)

	resp, err = DecodeDescription(&domain.Result{JobID: "1", Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Description)

	_, err = DecodeDescription(&domain.Result{JobID: "1", Data: []byte(`{"description":`)})
	var dErr *domain.DecodeError
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, "1", dErr.JobID)

	_, err = DecodeDescription(&domain.Result{JobID: "1", Data: []byte(`{"description":42}`)})
	assert.True(t, errors.As(err, &dErr))
}

func TestDecodePriceVerbatim(t *testing.T) {
	doc := `{"success":true,"price":42.0,"range":[35,50]}`
	raw, err := DecodePrice(&domain.Result{JobID: "1", Data: []byte(doc + "\n")})
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw))

	failed := `{"success":false,"price":null,"range":null,"error":"model not loaded"}`
	raw, err = DecodePrice(&domain.Result{JobID: "1", Data: []byte(failed)})
	require.NoError(t, err)
	assert.JSONEq(t, failed, string(raw))

	for _, bad := range []string{
		`{"price":42}`,
		`{"success":"yes"}`,
		`{"success":true,"range":[1,2,3]}`,
		`not json`,
	} {
		_, err := DecodePrice(&domain.Result{JobID: "1", Data: []byte(bad)})
		var dErr *domain.DecodeError
		assert.True(t, errors.As(err, &dErr), bad)
	}
}
