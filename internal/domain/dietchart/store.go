package dietchart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/domain/patient"
	"github.com/ayurclinic/clinic/internal/platform/events"
)

// MaxAppendAttempts bounds how often an append is retried after losing a
// version race with another writer.
const MaxAppendAttempts = 3

// Profiles is the slice of the patient repository the store needs.
type Profiles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	patient.ChartRepository
}

// Store manages the ordered diet chart history of each profile. Writes for
// one profile are serialized in process and checked against the stored
// version so concurrent writers in other processes cannot lose updates.
type Store struct {
	profiles Profiles
	engine   *dietplan.Engine
	events   events.Publisher
	logger   zerolog.Logger
	locks    *keyedMutex
}

type Option func(*Store)

func WithEvents(p events.Publisher) Option { return func(s *Store) { s.events = p } }
func WithLogger(l zerolog.Logger) Option   { return func(s *Store) { s.logger = l } }

func NewStore(profiles Profiles, engine *dietplan.Engine, opts ...Option) *Store {
	if engine == nil {
		engine = dietplan.NewEngine()
	}
	s := &Store{
		profiles: profiles,
		engine:   engine,
		events:   events.Nop{},
		logger:   zerolog.Nop(),
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append generates a chart from the current profile and adds it to the end
// of the history. It returns the chart and its position.
func (s *Store) Append(ctx context.Context, profileID uuid.UUID) (dietplan.Chart, int, error) {
	unlock := s.locks.Lock(profileID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		p, err := s.profiles.GetByID(ctx, profileID)
		if err != nil {
			return dietplan.Chart{}, 0, err
		}
		chart := s.engine.Generate(p.Subject())
		charts := append(p.DietCharts, chart)

		_, err = s.profiles.SaveCharts(ctx, profileID, charts, p.ChartVersion)
		if errors.Is(err, patient.ErrConcurrentModification) && attempt < MaxAppendAttempts {
			s.logger.Debug().Str("patient_id", profileID.String()).Int("attempt", attempt).Msg("diet chart append lost version race, retrying")
			continue
		}
		if err != nil {
			return dietplan.Chart{}, 0, err
		}

		index := len(charts) - 1
		s.publish(ctx, events.New(events.DietChartGenerated, profileID, map[string]interface{}{"index": index}))
		return chart.Clone(), index, nil
	}
}

// Update replaces the plan and notes of the chart at index. The generation
// date is kept.
func (s *Store) Update(ctx context.Context, profileID uuid.UUID, index int, diet dietplan.Plan, notes string) (dietplan.Chart, error) {
	unlock := s.locks.Lock(profileID)
	defer unlock()

	charts, version, err := s.profiles.Charts(ctx, profileID)
	if err != nil {
		return dietplan.Chart{}, err
	}
	if err := checkIndex(index, len(charts)); err != nil {
		return dietplan.Chart{}, err
	}

	charts[index].Diet = diet.Normalize().Clone()
	charts[index].Notes = notes
	if _, err := s.profiles.SaveCharts(ctx, profileID, charts, version); err != nil {
		return dietplan.Chart{}, err
	}

	s.publish(ctx, events.New(events.DietChartUpdated, profileID, map[string]interface{}{"index": index}))
	return charts[index].Clone(), nil
}

// Remove deletes the chart at index. Later charts move down one position.
func (s *Store) Remove(ctx context.Context, profileID uuid.UUID, index int) error {
	unlock := s.locks.Lock(profileID)
	defer unlock()

	charts, version, err := s.profiles.Charts(ctx, profileID)
	if err != nil {
		return err
	}
	if err := checkIndex(index, len(charts)); err != nil {
		return err
	}

	charts = append(charts[:index], charts[index+1:]...)
	if _, err := s.profiles.SaveCharts(ctx, profileID, charts, version); err != nil {
		return err
	}

	s.publish(ctx, events.New(events.DietChartRemoved, profileID, map[string]interface{}{"index": index}))
	return nil
}

// List returns the whole history, oldest first.
func (s *Store) List(ctx context.Context, profileID uuid.UUID) ([]dietplan.Chart, error) {
	charts, _, err := s.profiles.Charts(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return charts, nil
}

// Get returns the chart at index.
func (s *Store) Get(ctx context.Context, profileID uuid.UUID, index int) (dietplan.Chart, error) {
	charts, _, err := s.profiles.Charts(ctx, profileID)
	if err != nil {
		return dietplan.Chart{}, err
	}
	if err := checkIndex(index, len(charts)); err != nil {
		return dietplan.Chart{}, err
	}
	return charts[index], nil
}

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, n)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", evt.Type).Str("patient_id", evt.PatientID.String()).Msg("publish event")
	}
}
