package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnohealth/facility-map/internal/domain"
	"github.com/turnohealth/facility-map/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

type stubSource struct {
	facilities []domain.Facility
	err        error
}

func (s *stubSource) Load() ([]domain.Facility, error) { return s.facilities, s.err }

type stubStore struct {
	manual      []domain.Correction
	geocoded    []domain.Correction
	combined    []domain.Correction
	saveErr     error
	combinedErr error
}

func (s *stubStore) LoadManual() []domain.Correction { return s.manual }

func (s *stubStore) SaveGeocoded(c []domain.Correction) error {
	s.geocoded = c
	return s.saveErr
}

func (s *stubStore) SaveCombined(c []domain.Correction) error {
	s.combined = c
	return s.combinedErr
}

// cityGeocoder resolves requests from a fixed city map, as the last chain
// variant would.
type cityGeocoder struct {
	coords map[string][2]float64

	mu    sync.Mutex
	calls []string
}

func (g *cityGeocoder) Name() string { return "stub" }

func (g *cityGeocoder) Geocode(_ context.Context, req domain.GeocodeRequest) (domain.GeocodeResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req.Name)
	g.mu.Unlock()
	c, ok := g.coords[req.City]
	if !ok {
		return domain.GeocodeResult{}, domain.ErrNoMatch
	}
	return domain.GeocodeResult{Lat: c[0], Lon: c[1], FormattedAddress: req.City, Provider: "city lookup"}, nil
}

func (g *cityGeocoder) callNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.calls...)
}

func newPipeline(source *stubSource, store *stubStore, geocoder domain.Geocoder) *Pipeline {
	return New(source, store, geocoder, discardLogger(), observability.NewMetricsForTesting(), clockwork.NewFakeClock(), 0)
}

func TestRun_EndToEnd(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{ID: "f-1", Name: "Hospital Barcelona", City: "Barcelona", Latitude: ptr(41.3851), Longitude: ptr(2.1734)},
		{ID: "f-2", Name: "Residencia Turia", City: "Valencia", Latitude: ptr(0), Longitude: ptr(0)},
		{ID: "f-3", Name: "Centro Perdido", City: "Ningunaparte", Latitude: ptr(200), Longitude: ptr(200)},
	}}
	store := &stubStore{}
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Valencia": {39.4699, -0.3763}}}

	p := newPipeline(source, store, geocoder)
	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Good)
	assert.Equal(t, 1, report.Geocoded)
	assert.Equal(t, 1, report.Unresolved)
	assert.Equal(t, map[domain.Reason]int{domain.ReasonZero: 1, domain.ReasonExtreme: 1}, report.ByReason)

	// Good rows never reach the geocoder.
	assert.NotContains(t, geocoder.callNames(), "Hospital Barcelona")

	require.Len(t, store.geocoded, 1)
	assert.Equal(t, "Residencia Turia", store.geocoded[0].OriginalName)
	assert.Equal(t, 39.4699, store.geocoded[0].Lat)
	assert.Equal(t, "Geocoded via city lookup - Valencia", store.geocoded[0].SourceReason)

	require.Len(t, store.combined, 1)
	assert.Equal(t, "f-2", store.combined[0].FacilityID)
}

func TestRun_AlreadyCorrectedSkipsGeocoding(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{ID: "f-1", Name: "Residencia Turia", City: "Valencia", Latitude: ptr(0), Longitude: ptr(0)},
	}}
	store := &stubStore{manual: []domain.Correction{
		{OriginalName: "residencia turia", Lat: 39.5, Lon: -0.4, SourceReason: "manual"},
	}}
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Valencia": {39.4699, -0.3763}}}

	p := newPipeline(source, store, geocoder)
	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.AlreadyCorrected)
	assert.Empty(t, geocoder.callNames())
	assert.Empty(t, store.geocoded)

	// Manual row still lands in the combined table, enriched with the id.
	require.Len(t, store.combined, 1)
	assert.Equal(t, "manual", store.combined[0].SourceReason)
	assert.Equal(t, "f-1", store.combined[0].FacilityID)
}

func TestRun_ManualWinsOverGeocoded(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{ID: "f-1", Name: "Residencia Turia", City: "Valencia", Latitude: ptr(0), Longitude: ptr(0)},
		{ID: "f-2", Name: "Centro Sur", City: "Valencia", Latitude: nil, Longitude: nil},
	}}
	store := &stubStore{manual: []domain.Correction{
		{OriginalName: "Residencia Turia", Lat: 39.5, Lon: -0.4, SourceReason: "manual"},
	}}
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Valencia": {39.4699, -0.3763}}}

	p := newPipeline(source, store, geocoder)
	_, err := p.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, store.combined, 2)
	assert.Equal(t, 39.5, store.combined[0].Lat)
	assert.Equal(t, "Centro Sur", store.combined[1].OriginalName)
}

func TestRun_AnomalyKeptAndCounted(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{ID: "f-1", Name: "Hospital Insular", City: "Las Palmas", Latitude: nil, Longitude: nil},
	}}
	store := &stubStore{}
	// Canary Islands coordinates fall outside the mainland bounding box.
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Las Palmas": {28.1235, -15.4366}}}

	p := newPipeline(source, store, geocoder)
	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Geocoded)
	assert.Equal(t, 1, report.Anomalies)
	require.Len(t, store.geocoded, 1)
	assert.Equal(t, 28.1235, store.geocoded[0].Lat)
}

func TestRun_LoadFailureAborts(t *testing.T) {
	source := &stubSource{err: errors.New("disk gone")}
	p := newPipeline(source, &stubStore{}, nil)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageIdle, p.Status().Stage)
}

func TestRun_PersistFailureAborts(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{Name: "Hospital", City: "Madrid", Latitude: ptr(40.4), Longitude: ptr(-3.7)},
	}}
	store := &stubStore{saveErr: errors.New("read-only filesystem")}

	p := newPipeline(source, store, nil)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist geocoded")
}

func TestRun_NilGeocoderLeavesQueueUnresolved(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{Name: "Hospital", City: "Madrid", Latitude: nil, Longitude: nil},
	}}
	store := &stubStore{}

	p := newPipeline(source, store, nil)
	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Unresolved)
	assert.Equal(t, 0, report.Geocoded)
	assert.Empty(t, store.geocoded)
}

func TestRun_DelayBetweenGeocodeCalls(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{Name: "A", City: "Valencia", Latitude: nil, Longitude: nil},
		{Name: "B", City: "Valencia", Latitude: nil, Longitude: nil},
	}}
	store := &stubStore{}
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Valencia": {39.4699, -0.3763}}}

	clock := clockwork.NewFakeClock()
	p := New(source, store, geocoder, discardLogger(), observability.NewMetricsForTesting(), clock, 100*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	// The second call waits on the pacing timer until the clock advances.
	clock.BlockUntil(1)
	assert.Equal(t, []string{"A"}, geocoder.callNames())

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"A", "B"}, geocoder.callNames())
}

func TestRun_ContextCancelledDuringDelay(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{Name: "A", City: "Valencia", Latitude: nil, Longitude: nil},
		{Name: "B", City: "Valencia", Latitude: nil, Longitude: nil},
	}}
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Valencia": {39.4699, -0.3763}}}

	clock := clockwork.NewFakeClock()
	p := New(source, &stubStore{}, geocoder, discardLogger(), observability.NewMetricsForTesting(), clock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx)
		done <- err
	}()

	clock.BlockUntil(1)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_ProgressCallback(t *testing.T) {
	source := &stubSource{facilities: []domain.Facility{
		{Name: "A", City: "Valencia", Latitude: nil, Longitude: nil},
		{Name: "B", City: "Desconocida", Latitude: ptr(0), Longitude: ptr(0)},
	}}
	geocoder := &cityGeocoder{coords: map[string][2]float64{"Valencia": {39.4699, -0.3763}}}

	p := newPipeline(source, &stubStore{}, geocoder)
	var seen [][2]int
	p.OnGeocodeProgress(func(done, total int) { seen = append(seen, [2]int{done, total}) })

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, seen)
}

func TestStatus_TracksLifecycle(t *testing.T) {
	p := newPipeline(&stubSource{}, &stubStore{}, nil)
	assert.Equal(t, StageIdle, p.Status().Stage)
	assert.Nil(t, p.Status().LastReport)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	status := p.Status()
	assert.Equal(t, StageDone, status.Stage)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, 0, status.LastReport.Total)
}
