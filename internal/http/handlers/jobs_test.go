package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbridge/internal/domain"
	"adbridge/internal/infra"
	"adbridge/internal/poller"
	"adbridge/internal/storage"
)

const testJobID = "1700000000000-deadbeef"

func newTestApp(t *testing.T, timeout time.Duration) *App {
	t.Helper()
	store, err := storage.NewJobStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureDirectories())

	cfg := &infra.Config{
		PollInterval:    10 * time.Millisecond,
		Timeouts:        map[domain.Mode]time.Duration{},
		MaxBodyBytes:    1 << 20,
		MaxInflightJobs: 4,
	}
	for _, m := range domain.Modes {
		cfg.Timeouts[m] = timeout
	}
	p := poller.New(store, zerolog.Nop())
	p.Settle = 20 * time.Millisecond
	app := NewApp(cfg, zerolog.Nop(), store, p)
	app.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	app.NewID = func(time.Time) string { return testJobID }
	return app
}

// answer plays the worker: once the request record shows up it writes data
// as the job's result.
func answer(t *testing.T, app *App, kind domain.ResultKind, data []byte) <-chan map[string]any {
	t.Helper()
	records := make(chan map[string]any, 1)
	go func() {
		defer close(records)
		reqPath := filepath.Join(app.Store.RequestsDir(), domain.RequestFileName(testJobID))
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			raw, err := os.ReadFile(reqPath)
			if err == nil {
				var rec map[string]any
				if json.Unmarshal(raw, &rec) == nil {
					records <- rec
				}
				_ = os.WriteFile(app.Store.ResultPath(testJobID, kind), data, 0o644)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
	return records
}

func post(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func requestFiles(t *testing.T, app *App) []string {
	t.Helper()
	entries, err := os.ReadDir(app.Store.RequestsDir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTextToImageReturnsWorkerImage(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	png := []byte("\x89PNG\r\n\x1a\nfake-image")
	records := answer(t, app, domain.ResultImage, png)

	rr := post(app.TextToImage, "/api/text-to-image", `{"prompt":"red shoe"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, testJobID, rr.Header().Get("X-Job-ID"))
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), body["image"])

	rec := <-records
	require.NotNil(t, rec)
	assert.Equal(t, "text-to-image", rec["mode"])
	assert.Equal(t, "red shoe", rec["prompt"])
	assert.Equal(t, testJobID, rec["job_id"])
	assert.EqualValues(t, 512, rec["width"])
	assert.EqualValues(t, 512, rec["height"])
}

func TestTextToImageMissingPromptWritesNothing(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := post(app.TextToImage, "/api/text-to-image", `{"prompt":"   "}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Prompt required", body["error"])
	assert.Empty(t, requestFiles(t, app))
	assert.Empty(t, rr.Header().Get("X-Job-ID"))
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := post(app.Price, "/api/price", `{"product_name":`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid JSON body", decodeBody(t, rr)["error"])
	assert.Empty(t, requestFiles(t, app))
}

func TestBodyTooLarge(t *testing.T) {
	app := newTestApp(t, time.Second)
	app.Config.MaxBodyBytes = 32

	rr := post(app.TextToImage, "/api/text-to-image", `{"prompt":"`+strings.Repeat("a", 64)+`"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Request body too large", decodeBody(t, rr)["error"])
}

func TestImageToImageWritesCompanionInput(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	input := []byte("source-photo")
	records := answer(t, app, domain.ResultImage, []byte("styled"))

	body := `{"input_image":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(input) + `","strength":"0.7","size":"800x600"}`
	rr := post(app.ImageToImage, "/api/image-to-image", body)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := <-records
	assert.Equal(t, "image-to-image", rec["mode"])
	assert.Equal(t, "professional product photography", rec["prompt"])
	assert.EqualValues(t, 0.7, rec["strength"])
	assert.EqualValues(t, 800, rec["width"])
	assert.EqualValues(t, 600, rec["height"])
	assert.Equal(t, domain.InputFileName(testJobID), rec["input_file"])

	written, err := os.ReadFile(filepath.Join(app.Store.RequestsDir(), domain.InputFileName(testJobID)))
	require.NoError(t, err)
	assert.Equal(t, input, written)
}

func TestImageToImageRejectsBadDataURL(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := post(app.ImageToImage, "/api/image-to-image", `{"input_image":"data:image/png;base64,%%%"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid image data", decodeBody(t, rr)["error"])
	assert.Empty(t, requestFiles(t, app))
}

func TestImageToTextReturnsDescription(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	answer(t, app, domain.ResultJSON, []byte(`{"description":"A red leather shoe"}`))

	body := `{"input_image":"data:image/jpeg;base64,` + base64.StdEncoding.EncodeToString([]byte("photo")) + `"}`
	rr := post(app.ImageToText, "/api/image-to-text", body)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "A red leather shoe", out["description"])
}

func TestImageToTextMalformedResult(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	answer(t, app, domain.ResultJSON, []byte(`not json`))

	body := `{"input_image":"data:image/jpeg;base64,` + base64.StdEncoding.EncodeToString([]byte("photo")) + `"}`
	rr := post(app.ImageToText, "/api/image-to-text", body)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	out := decodeBody(t, rr)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], testJobID)
}

func TestPriceReturnsWorkerDocumentVerbatim(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	doc := `{"success":true,"price":129000,"range":[110000,150000]}`
	records := answer(t, app, domain.ResultJSON, []byte(doc))

	rr := post(app.Price, "/api/price", `{"product_name":"Sneaker","brand":"Acme","category":"Shoes","rating":"4.8"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, doc, rr.Body.String())
	rec := <-records
	assert.Equal(t, "price", rec["mode"])
	assert.EqualValues(t, 4.8, rec["rating"])
	assert.EqualValues(t, 0, rec["num_reviews"])
	assert.Equal(t, "", rec["material"])
}

func TestPriceFailureDocumentPassesThrough(t *testing.T) {
	app := newTestApp(t, 5*time.Second)
	doc := `{"success":false,"error":"model not loaded"}`
	answer(t, app, domain.ResultJSON, []byte(doc))

	rr := post(app.Price, "/api/price", `{"product_name":"Sneaker","brand":"Acme","category":"Shoes"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, doc, rr.Body.String())
}

func TestPriceMissingBrand(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := post(app.Price, "/api/price", `{"product_name":"Sneaker","category":"Shoes"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "brand is required", decodeBody(t, rr)["error"])
	assert.Empty(t, requestFiles(t, app))
}

func TestPriceRejectsInvalidNumbers(t *testing.T) {
	app := newTestApp(t, time.Second)
	base := `"product_name":"Sneaker","brand":"Acme","category":"Shoes"`

	for _, tc := range []struct{ extra, want string }{
		{`"rating":"NaN"`, "rating must be a number"},
		{`"rating":"-Inf"`, "rating must be a number"},
		{`"num_reviews":2.5`, "num_reviews must be a non-negative whole number"},
		{`"num_reviews":-1`, "num_reviews must be a non-negative whole number"},
	} {
		rr := post(app.Price, "/api/price", `{`+base+`,`+tc.extra+`}`)

		require.Equal(t, http.StatusBadRequest, rr.Code, tc.extra)
		assert.Equal(t, tc.want, decodeBody(t, rr)["error"], tc.extra)
		assert.Empty(t, requestFiles(t, app), tc.extra)
	}
}

func TestWorkerTimeout(t *testing.T) {
	app := newTestApp(t, 60*time.Millisecond)

	start := time.Now()
	rr := post(app.TextToImage, "/api/text-to-image", `{"prompt":"red shoe"}`)

	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, "Timed out waiting for worker. Is the notebook running?", decodeBody(t, rr)["error"])
	// The request record stays behind for the worker.
	assert.Equal(t, []string{domain.RequestFileName(testJobID)}, requestFiles(t, app))
}

func TestCanceledRequest(t *testing.T) {
	app := newTestApp(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/text-to-image", strings.NewReader(`{"prompt":"red shoe"}`)).WithContext(ctx)
	rr := httptest.NewRecorder()
	time.AfterFunc(30*time.Millisecond, cancel)

	app.TextToImage(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Request canceled", decodeBody(t, rr)["error"])
}

func TestTooManyJobsInFlight(t *testing.T) {
	app := newTestApp(t, time.Second)
	for i := 0; i < cap(app.jobLimiter); i++ {
		app.jobLimiter <- struct{}{}
	}

	rr := post(app.TextToImage, "/api/text-to-image", `{"prompt":"red shoe"}`)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, requestFiles(t, app))
}

func TestDuplicateJobIDIsStoreError(t *testing.T) {
	app := newTestApp(t, time.Second)
	require.NoError(t, app.Store.Submit(context.Background(), domain.Job{
		ID:      testJobID,
		Mode:    domain.ModePrice,
		Payload: map[string]any{},
	}))

	rr := post(app.TextToImage, "/api/text-to-image", `{"prompt":"red shoe"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], domain.ErrJobExists.Error())
}

func withJobID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("job_id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestJobStatus(t *testing.T) {
	app := newTestApp(t, time.Second)
	require.NoError(t, app.Store.Submit(context.Background(), domain.Job{
		ID:        testJobID,
		Mode:      domain.ModePrice,
		CreatedAt: time.UnixMilli(1700000000000),
		Payload:   map[string]any{"brand": "Acme"},
	}))

	rr := httptest.NewRecorder()
	app.JobStatus(rr, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/"+testJobID, nil), testJobID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	assert.Equal(t, "price", out["mode"])
	assert.Equal(t, false, out["done"])
	assert.Equal(t, "Acme", out["record"].(map[string]any)["brand"])

	require.NoError(t, os.WriteFile(app.Store.ResultPath(testJobID, domain.ResultJSON), []byte(`{"success":true}`), 0o644))
	rr = httptest.NewRecorder()
	app.JobStatus(rr, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/"+testJobID, nil), testJobID))
	assert.Equal(t, true, decodeBody(t, rr)["done"])
}

func TestJobStatusNotFound(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := httptest.NewRecorder()
	app.JobStatus(rr, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), "nope"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	app.JobStatus(rr, withJobID(httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil), "../etc"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := httptest.NewRecorder()
	app.Health(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, os.RemoveAll(app.Store.ResultsDir()))
	rr = httptest.NewRecorder()
	app.Health(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestOpenAPIDocumentIsValidJSON(t *testing.T) {
	app := newTestApp(t, time.Second)

	rr := httptest.NewRecorder()
	app.OpenAPIJSON(rr, httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, json.Valid(rr.Body.Bytes()))
	assert.True(t, bytes.Contains(rr.Body.Bytes(), []byte("/api/text-to-image")))
}
