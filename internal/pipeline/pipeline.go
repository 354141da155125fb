// Package pipeline orchestrates one coordinate reconciliation run: load the
// raw facility table, classify coordinate quality, geocode the problem rows,
// merge with manual corrections, and persist the result tables. Nothing is
// written until every in-memory stage has finished.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/turnohealth/facility-map/internal/domain"
	"github.com/turnohealth/facility-map/internal/observability"
)

// FacilitySource provides the raw facility snapshot.
type FacilitySource interface {
	Load() ([]domain.Facility, error)
}

// CorrectionStore persists and retrieves correction tables. Loading manual
// corrections never fails; persistence failures abort the run.
type CorrectionStore interface {
	LoadManual() []domain.Correction
	SaveGeocoded([]domain.Correction) error
	SaveCombined([]domain.Correction) error
}

// Stage labels the phase a run is currently in.
type Stage string

const (
	StageIdle     Stage = "idle"
	StageLoad     Stage = "load"
	StageClassify Stage = "classify"
	StageGeocode  Stage = "geocode"
	StageCombine  Stage = "combine"
	StagePersist  Stage = "persist"
	StageDone     Stage = "done"
)

// Report summarizes one completed run.
type Report struct {
	Total            int                   `json:"total"`
	Good             int                   `json:"good"`
	AlreadyCorrected int                   `json:"already_corrected"`
	ByReason         map[domain.Reason]int `json:"by_reason"`
	Geocoded         int                   `json:"geocoded"`
	Unresolved       int                   `json:"unresolved"`
	Anomalies        int                   `json:"anomalies"`
	Combined         int                   `json:"combined"`
}

// Status is the snapshot exposed on the ops endpoint.
type Status struct {
	Stage      Stage   `json:"stage"`
	LastReport *Report `json:"last_report,omitempty"`
}

// Pipeline runs the reconciliation end to end. One Pipeline handles one run
// at a time; Run is not safe for concurrent calls.
type Pipeline struct {
	source      FacilitySource
	corrections CorrectionStore
	geocoder    domain.Geocoder
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	delay       time.Duration

	onProgress func(done, total int)

	mu         sync.Mutex
	stage      Stage
	lastReport *Report
}

// New assembles a pipeline. A nil geocoder disables the geocoding stage;
// classification and combining still run.
func New(
	source FacilitySource,
	corrections CorrectionStore,
	geocoder domain.Geocoder,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	delay time.Duration,
) *Pipeline {
	return &Pipeline{
		source:      source,
		corrections: corrections,
		geocoder:    geocoder,
		logger:      logger,
		metrics:     metrics,
		clock:       clock,
		delay:       delay,
		stage:       StageIdle,
	}
}

// OnGeocodeProgress registers a callback invoked after each geocode attempt
// with the number of facilities handled so far and the queue total.
func (p *Pipeline) OnGeocodeProgress(fn func(done, total int)) {
	p.onProgress = fn
}

// Status returns the current stage and, once a run has finished, its report.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{Stage: p.stage, LastReport: p.lastReport}
}

func (p *Pipeline) setStage(s Stage) {
	p.mu.Lock()
	p.stage = s
	p.mu.Unlock()
	p.logger.Info("pipeline stage", "stage", string(s))
}

// Run executes one reconciliation. The returned report is also retained for
// Status. Load and persistence errors abort the run; per-facility geocoding
// failures do not.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := p.clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.setStage(StageLoad)
	facilities, err := p.source.Load()
	if err != nil {
		p.setStage(StageIdle)
		return nil, fmt.Errorf("load facilities: %w", err)
	}
	manual := p.corrections.LoadManual()

	p.setStage(StageClassify)
	report := &Report{
		Total:    len(facilities),
		ByReason: make(map[domain.Reason]int),
	}

	corrected := make(map[string]struct{}, len(manual))
	for _, c := range manual {
		corrected[c.Key()] = struct{}{}
	}

	var queue []queued
	for _, f := range facilities {
		reason := domain.Classify(f)
		if _, ok := corrected[f.Key()]; ok {
			reason = domain.ReasonAlreadyCorrected
		}
		p.metrics.FacilitiesClassified.WithLabelValues(string(reason)).Inc()

		switch reason {
		case domain.ReasonGood:
			report.Good++
		case domain.ReasonAlreadyCorrected:
			report.AlreadyCorrected++
		default:
			report.ByReason[reason]++
			queue = append(queue, queued{facility: f, reason: reason})
		}
	}
	p.logger.Info("classified facilities",
		"total", report.Total,
		"good", report.Good,
		"already_corrected", report.AlreadyCorrected,
		"queued", len(queue))

	p.setStage(StageGeocode)
	geocoded, err := p.geocodeQueue(ctx, queue, report)
	if err != nil {
		p.setStage(StageIdle)
		return nil, err
	}

	p.setStage(StageCombine)
	combined := domain.Combine(manual, geocoded, facilities)
	report.Combined = len(combined)

	p.setStage(StagePersist)
	if err := p.corrections.SaveGeocoded(geocoded); err != nil {
		p.setStage(StageIdle)
		return nil, fmt.Errorf("persist geocoded corrections: %w", err)
	}
	if err := p.corrections.SaveCombined(combined); err != nil {
		p.setStage(StageIdle)
		return nil, fmt.Errorf("persist combined corrections: %w", err)
	}
	p.metrics.CorrectionsWritten.Set(float64(len(combined)))
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())

	p.mu.Lock()
	p.stage = StageDone
	p.lastReport = report
	p.mu.Unlock()

	p.logger.Info("pipeline finished",
		"geocoded", report.Geocoded,
		"unresolved", report.Unresolved,
		"anomalies", report.Anomalies,
		"combined", report.Combined,
		"elapsed", p.clock.Since(start))
	return report, nil
}

type queued struct {
	facility domain.Facility
	reason   domain.Reason
}

func (p *Pipeline) geocodeQueue(ctx context.Context, queue []queued, report *Report) ([]domain.Correction, error) {
	if p.geocoder == nil {
		if len(queue) > 0 {
			p.logger.Warn("no geocoder configured, leaving queue unresolved", "queued", len(queue))
			report.Unresolved = len(queue)
		}
		return nil, nil
	}

	geocoded := make([]domain.Correction, 0, len(queue))
	for i, q := range queue {
		if i > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-p.clock.After(p.delay):
			}
		}

		f := q.facility
		res, err := p.geocoder.Geocode(ctx, domain.GeocodeRequest{
			Name:    f.Name,
			Address: f.Address,
			City:    f.City,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("facility left unresolved",
				"facility", f.Name,
				"city", f.City,
				"reason", string(q.reason),
				"error", err)
			report.Unresolved++
		} else {
			if !domain.InRegion(res.Lat, res.Lon) {
				p.logger.Warn("geocoded coordinate outside region bounds, keeping",
					"facility", f.Name,
					"lat", res.Lat,
					"lon", res.Lon,
					"provider", res.Provider)
				p.metrics.GeocodeAnomalies.Inc()
				report.Anomalies++
			}
			geocoded = append(geocoded, domain.NewGeocodedCorrection(f, res))
			report.Geocoded++
		}

		if p.onProgress != nil {
			p.onProgress(i+1, len(queue))
		}
	}
	return geocoded, nil
}
