package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/domain/patient"
	"github.com/ayurclinic/clinic/internal/platform/events"
)

// ChartSource reads a single chart from a profile's history.
type ChartSource interface {
	Get(ctx context.Context, profileID uuid.UUID, index int) (dietplan.Chart, error)
}

// Roster lists the profiles a practitioner may export.
type Roster interface {
	ListAll(ctx context.Context, addedBy string) ([]*patient.Patient, error)
}

// Export is a rendered, downloadable chart.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

type Service struct {
	charts   ChartSource
	roster   Roster
	renderer Renderer
	archive  Archive
	events   events.Publisher
	logger   zerolog.Logger
	clock    func() time.Time
}

type Option func(*Service)

func WithArchive(a Archive) Option         { return func(s *Service) { s.archive = a } }
func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }
func WithLogger(l zerolog.Logger) Option   { return func(s *Service) { s.logger = l } }
func WithClock(c func() time.Time) Option  { return func(s *Service) { s.clock = c } }

func NewService(charts ChartSource, roster Roster, renderer Renderer, opts ...Option) *Service {
	s := &Service{
		charts:   charts,
		roster:   roster,
		renderer: renderer,
		events:   events.Nop{},
		logger:   zerolog.Nop(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders chart index of p. Renderer failures come back wrapping
// ErrRenderFailed. Archiving is best effort.
func (s *Service) Export(ctx context.Context, p *patient.Patient, index int, format Format) (*Export, error) {
	chart, err := s.charts.Get(ctx, p.ID, index)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	doc, err := BuildDocument(p, index, chart, now)
	if err != nil {
		return nil, err
	}
	body, err := s.renderer.Render(ctx, doc, format)
	if err != nil {
		return nil, err
	}

	out := &Export{
		Filename:    doc.BaseName + format.Ext(),
		ContentType: format.ContentType(),
		Body:        body,
	}
	s.archiveCopy(ctx, ArchiveKey(p.ID, index, now, format.Ext()), out)
	if err := s.events.Publish(ctx, events.New(events.DietChartExported, p.ID, map[string]interface{}{
		"index":  index,
		"format": string(format),
	})); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("publish event")
	}
	return out, nil
}

// Roster builds the xlsx roster of the profiles added by addedBy. An empty
// addedBy exports every profile.
func (s *Service) Roster(ctx context.Context, addedBy string) (*Export, error) {
	patients, err := s.roster.ListAll(ctx, addedBy)
	if err != nil {
		return nil, err
	}
	body, err := BuildRoster(patients)
	if err != nil {
		return nil, err
	}
	return &Export{
		Filename:    fmt.Sprintf("patients-%s.xlsx", s.clock().Format("20060102")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        body,
	}, nil
}

// ArchiveKey is where an export of chart index is stored.
func ArchiveKey(patientID uuid.UUID, index int, at time.Time, ext string) string {
	return fmt.Sprintf("charts/%s/%d-%d%s", patientID, index+1, at.Unix(), ext)
}

func (s *Service) archiveCopy(ctx context.Context, key string, out *Export) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, key, out.Body, out.ContentType); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("archive diet chart export")
	}
}
