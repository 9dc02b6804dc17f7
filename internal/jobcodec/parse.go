package jobcodec

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

var (
	errNoComma    = errors.New("expected <header>,<base64 data>")
	errEmptyImage = errors.New("decoded image is empty")
)

// ParseSize reads "<width>x<height>". Anything unparsable, including
// non-positive dimensions, falls back to 512x512.
func ParseSize(size any) (int, int) {
	s, ok := size.(string)
	if !ok {
		return DefaultWidth, DefaultHeight
	}
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return DefaultWidth, DefaultHeight
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return DefaultWidth, DefaultHeight
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return DefaultWidth, DefaultHeight
	}
	if w <= 0 || h <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return w, h
}

// ParseDataURL decodes the base64 payload of "<header>,<payload>". The
// header is not interpreted; browsers send "data:image/png;base64".
func ParseDataURL(s string) ([]byte, error) {
	_, payload, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return nil, errNoComma
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err = enc.DecodeString(payload)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	return data, nil
}
