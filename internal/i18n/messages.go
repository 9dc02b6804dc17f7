// Package i18n holds the client-facing message catalog. Keys are the English
// text; Indonesian translations are registered alongside.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	MsgPromptRequired  = "Prompt required"
	MsgImageRequired   = "Image required"
	MsgInvalidImage    = "Invalid image data"
	MsgFieldRequired   = "%s is required"
	MsgNotANumber      = "%s must be a number"
	MsgNotAWholeNumber = "%s must be a non-negative whole number"
	MsgInvalidBody     = "Invalid JSON body"
	MsgBodyTooLarge    = "Request body too large"
	MsgTimeout         = "Timed out waiting for worker. Is the notebook running?"
	MsgCanceled        = "Request canceled"
	MsgBusy            = "Too many jobs in flight, try again shortly"
	MsgJobNotFound     = "Job not found"
	MsgRateLimited     = "Too many requests"
)

var indonesian = map[string]string{
	MsgPromptRequired:  "Prompt wajib diisi",
	MsgImageRequired:   "Gambar wajib diisi",
	MsgInvalidImage:    "Data gambar tidak valid",
	MsgFieldRequired:   "%s wajib diisi",
	MsgNotANumber:      "%s harus berupa angka",
	MsgNotAWholeNumber: "%s harus berupa bilangan bulat non-negatif",
	MsgInvalidBody:     "Body JSON tidak valid",
	MsgBodyTooLarge:    "Body permintaan terlalu besar",
	MsgTimeout:         "Waktu habis menunggu worker. Apakah notebook sedang berjalan?",
	MsgCanceled:        "Permintaan dibatalkan",
	MsgBusy:            "Terlalu banyak job berjalan, coba lagi sebentar lagi",
	MsgJobNotFound:     "Job tidak ditemukan",
	MsgRateLimited:     "Terlalu banyak permintaan",
}

// Supported lists the locales with a full catalog, default first.
var Supported = []language.Tag{language.English, language.Indonesian}

var (
	matcher = language.NewMatcher(Supported)
	cat     = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, id := range indonesian {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Indonesian, key, id)
	}
	return b
}

// Match picks the best supported locale ("en" or "id") for an
// Accept-Language header or a bare tag. It returns "" when nothing parses.
func Match(accept string) string {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Supported[0].String()
	}
	return Supported[idx].String()
}

// Printer returns a printer bound to the closest supported locale.
func Printer(locale string) *message.Printer {
	tag := Supported[0]
	if t, err := language.Parse(locale); err == nil {
		_, idx, _ := matcher.Match(t)
		tag = Supported[idx]
	}
	return message.NewPrinter(tag, message.Catalog(cat))
}

// Sprintf renders key in locale.
func Sprintf(locale, key string, args ...any) string {
	return Printer(locale).Sprintf(key, args...)
}
