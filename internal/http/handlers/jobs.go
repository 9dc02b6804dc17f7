package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"adbridge/internal/domain"
	"adbridge/internal/i18n"
	"adbridge/internal/jobcodec"
	"adbridge/internal/metrics"
)

// encodeFunc reads the request body and builds the job to submit.
type encodeFunc func(w http.ResponseWriter, r *http.Request) (domain.Job, error)

// respondFunc turns the worker's artifact into the HTTP response.
type respondFunc func(w http.ResponseWriter, res *domain.Result) error

func (a *App) TextToImage(w http.ResponseWriter, r *http.Request) {
	a.runJob(w, r, domain.ModeTextToImage, func(w http.ResponseWriter, r *http.Request) (domain.Job, error) {
		var req jobcodec.TextToImageRequest
		if err := a.decodeBody(w, r, &req); err != nil {
			return domain.Job{}, err
		}
		return jobcodec.EncodeTextToImage(req)
	}, a.writeImage)
}

func (a *App) ImageToImage(w http.ResponseWriter, r *http.Request) {
	a.runJob(w, r, domain.ModeImageToImage, func(w http.ResponseWriter, r *http.Request) (domain.Job, error) {
		var req jobcodec.ImageToImageRequest
		if err := a.decodeBody(w, r, &req); err != nil {
			return domain.Job{}, err
		}
		return jobcodec.EncodeImageToImage(req)
	}, a.writeImage)
}

func (a *App) ImageToText(w http.ResponseWriter, r *http.Request) {
	a.runJob(w, r, domain.ModeImageToText, func(w http.ResponseWriter, r *http.Request) (domain.Job, error) {
		var req jobcodec.ImageToTextRequest
		if err := a.decodeBody(w, r, &req); err != nil {
			return domain.Job{}, err
		}
		return jobcodec.EncodeImageToText(req)
	}, a.writeDescription)
}

func (a *App) Price(w http.ResponseWriter, r *http.Request) {
	a.runJob(w, r, domain.ModePrice, func(w http.ResponseWriter, r *http.Request) (domain.Job, error) {
		var req jobcodec.PriceRequest
		if err := a.decodeBody(w, r, &req); err != nil {
			return domain.Job{}, err
		}
		return jobcodec.EncodePrice(req)
	}, a.writePrice)
}

// runJob is the pipeline shared by every mode: encode, submit, wait for the
// worker, decode. Nothing is written to disk when encoding fails.
func (a *App) runJob(w http.ResponseWriter, r *http.Request, mode domain.Mode, encode encodeFunc, respond respondFunc) {
	ctx := r.Context()
	start := time.Now()
	logger := a.logger(r).With().Str("mode", string(mode)).Logger()

	finish := func(outcome string) {
		metrics.JobsFinished.WithLabelValues(string(mode), outcome).Inc()
	}

	job, err := encode(w, r)
	if err != nil {
		finish(a.fail(w, r, &logger, err))
		return
	}

	if a.jobLimiter != nil {
		select {
		case a.jobLimiter <- struct{}{}:
			defer func() { <-a.jobLimiter }()
		default:
			logger.Warn().Int("max_inflight_jobs", cap(a.jobLimiter)).Msg("rejecting job, too many in flight")
			a.error(w, http.StatusServiceUnavailable, i18n.Sprintf(a.locale(r), i18n.MsgBusy))
			finish(metrics.OutcomeRejected)
			return
		}
	}

	now := a.Now()
	job.ID = a.NewID(now)
	job.CreatedAt = now
	logger = logger.With().Str("job_id", job.ID).Logger()
	w.Header().Set("X-Job-ID", job.ID)

	if err := a.Store.Submit(ctx, job); err != nil {
		finish(a.fail(w, r, &logger, err))
		return
	}
	metrics.JobsSubmitted.WithLabelValues(string(mode)).Inc()
	logger.Info().Bool("has_input", len(job.Input) > 0).Msg("job submitted")

	inflight := metrics.JobsInFlight.WithLabelValues(string(mode))
	inflight.Inc()
	timeout := a.Config.Timeout(mode)
	res, err := a.Poller.AwaitResult(ctx, job.ID, mode.ResultKind(), timeout, a.Config.PollInterval)
	inflight.Dec()
	waited := time.Since(start)

	if err != nil {
		outcome := a.fail(w, r, &logger, err)
		metrics.JobWait.WithLabelValues(string(mode), outcome).Observe(waited.Seconds())
		finish(outcome)
		return
	}

	if err := respond(w, res); err != nil {
		outcome := a.fail(w, r, &logger, err)
		metrics.JobWait.WithLabelValues(string(mode), outcome).Observe(waited.Seconds())
		finish(outcome)
		return
	}
	metrics.JobWait.WithLabelValues(string(mode), metrics.OutcomeSuccess).Observe(waited.Seconds())
	finish(metrics.OutcomeSuccess)
	logger.Info().Dur("waited", waited).Int("result_bytes", len(res.Data)).Msg("job completed")
}

// fail maps a pipeline error to its status code, writes the error body and
// returns the metrics outcome.
func (a *App) fail(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) string {
	locale := a.locale(r)

	var verr *domain.ValidationError
	var derr *domain.DecodeError
	switch {
	case errors.As(err, &verr):
		logger.Debug().Err(err).Str("field", verr.Field).Msg("rejected request")
		a.error(w, http.StatusBadRequest, i18n.Sprintf(locale, verr.Message, verr.Args...))
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrTimeout):
		logger.Warn().Err(err).Msg("worker did not answer in time")
		a.error(w, http.StatusGatewayTimeout, i18n.Sprintf(locale, i18n.MsgTimeout))
		return metrics.OutcomeTimeout
	case errors.Is(err, domain.ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Info().Err(err).Msg("request ended before the worker answered")
		a.error(w, http.StatusServiceUnavailable, i18n.Sprintf(locale, i18n.MsgCanceled))
		return metrics.OutcomeCanceled
	case errors.As(err, &derr):
		logger.Error().Err(err).Msg("unreadable worker result")
		a.error(w, http.StatusInternalServerError, err.Error())
		return metrics.OutcomeDecodeError
	default:
		logger.Error().Err(err).Msg("job store failure")
		a.error(w, http.StatusInternalServerError, err.Error())
		return metrics.OutcomeStoreError
	}
}

// decodeBody reads a JSON body capped at max_body_bytes. Every failure is a
// validation error.
func (a *App) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if a.Config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.Config.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.ValidationError{Field: "body", Message: i18n.MsgBodyTooLarge, Cause: err}
		}
		return &domain.ValidationError{Field: "body", Message: i18n.MsgInvalidBody, Cause: err}
	}
	return nil
}

func (a *App) writeImage(w http.ResponseWriter, res *domain.Result) error {
	a.json(w, http.StatusOK, jobcodec.DecodeImage(res))
	return nil
}

func (a *App) writeDescription(w http.ResponseWriter, res *domain.Result) error {
	body, err := jobcodec.DecodeDescription(res)
	if err != nil {
		return err
	}
	a.json(w, http.StatusOK, body)
	return nil
}

// writePrice passes the worker's document through untouched, including
// documents reporting success=false.
func (a *App) writePrice(w http.ResponseWriter, res *domain.Result) error {
	body, err := jobcodec.DecodePrice(res)
	if err != nil {
		return err
	}
	a.rawJSON(w, http.StatusOK, body)
	return nil
}

type jobStatusResponse struct {
	Success     bool           `json:"success"`
	JobID       string         `json:"job_id"`
	Mode        domain.Mode    `json:"mode"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Done        bool           `json:"done"`
	Record      map[string]any `json:"record"`
}

// JobStatus reports a submitted job and whether the worker has answered.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	locale := a.locale(r)
	if !domain.ValidJobID(jobID) {
		a.error(w, http.StatusBadRequest, i18n.Sprintf(locale, i18n.MsgJobNotFound))
		return
	}
	record, err := a.Store.Load(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, i18n.Sprintf(locale, i18n.MsgJobNotFound))
			return
		}
		a.logger(r).Error().Err(err).Str("job_id", jobID).Msg("load job failed")
		a.error(w, http.StatusInternalServerError, err.Error())
		return
	}
	info, err := a.Store.Status(jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, jobStatusResponse{
		Success:     true,
		JobID:       info.ID,
		Mode:        info.Mode,
		SubmittedAt: info.SubmittedAt,
		Done:        info.Done,
		Record:      record,
	})
}
