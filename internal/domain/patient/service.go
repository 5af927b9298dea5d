package patient

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ayurclinic/clinic/internal/platform/events"
)

// MaxLoginIDAttempts bounds login id generation before giving up with
// ErrCollisionExhausted.
const MaxLoginIDAttempts = 20

// SessionIssuer is the credential collaborator that turns a successful
// login into a session token and can invalidate a patient's sessions.
type SessionIssuer interface {
	Issue(ctx context.Context, patientID uuid.UUID, loginID string) (string, error)
	RevokeAll(ctx context.Context, patientID uuid.UUID) error
}

type Service struct {
	patients Repository
	hasher   PasswordHasher
	sessions SessionIssuer
	events   events.Publisher
	logger   zerolog.Logger

	rand  io.Reader
	clock func() time.Time

	// decoy is compared against on unknown login ids so both failure
	// paths cost one bcrypt comparison.
	decoyOnce sync.Once
	decoy     string
}

type Option func(*Service)

func WithRand(r io.Reader) Option          { return func(s *Service) { s.rand = r } }
func WithClock(c func() time.Time) Option  { return func(s *Service) { s.clock = c } }
func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }
func WithLogger(l zerolog.Logger) Option   { return func(s *Service) { s.logger = l } }
func WithSessions(si SessionIssuer) Option { return func(s *Service) { s.sessions = si } }
func WithHasher(h PasswordHasher) Option   { return func(s *Service) { s.hasher = h } }

func NewService(patients Repository, opts ...Option) *Service {
	s := &Service{
		patients: patients,
		hasher:   BcryptHasher{},
		events:   events.Nop{},
		logger:   zerolog.Nop(),
		rand:     rand.Reader,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Created is the one-time result of a create or reset. Password is the
// plaintext and is not retrievable afterwards.
type Created struct {
	Patient  *Patient `json:"patient"`
	Password string   `json:"password"`
}

// Create validates the input, allocates a unique login id and a password,
// and stores the profile with an empty diet chart history.
func (s *Service) Create(ctx context.Context, in ProfileInput, addedBy string) (*Created, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	addedBy = strings.TrimSpace(addedBy)
	if addedBy == "" {
		return nil, &ValidationError{Violations: []Violation{{Field: "addedBy", Message: "addedBy is required"}}}
	}

	password, err := GeneratePassword(s.rand)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password, HashCost)
	if err != nil {
		return nil, err
	}

	p := &Patient{AddedBy: addedBy, PasswordHash: hash}
	p.Apply(in)

	for attempt := 0; attempt < MaxLoginIDAttempts; attempt++ {
		loginID, err := GenerateLoginID(s.clock(), s.rand)
		if err != nil {
			return nil, err
		}
		taken, err := s.patients.LoginIDExists(ctx, loginID)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		p.LoginID = loginID
		err = s.patients.Create(ctx, p)
		if errors.Is(err, ErrDuplicateLoginID) {
			// Lost a race with a concurrent create.
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(ctx, events.New(events.PatientCreated, p.ID, map[string]interface{}{
			"added_by": p.AddedBy,
			"login_id": p.LoginID,
		}))
		return &Created{Patient: p, Password: password}, nil
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrCollisionExhausted, MaxLoginIDAttempts)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// GetOwned returns the profile only if addedBy matches owner. Admins pass
// an empty owner. A foreign profile is reported as not found.
func (s *Service) GetOwned(ctx context.Context, id uuid.UUID, owner string) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != "" && p.AddedBy != owner {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns summaries of the profiles added by addedBy, newest first.
func (s *Service) List(ctx context.Context, addedBy string, limit, offset int) ([]Summary, int, error) {
	items, total, err := s.patients.ListByOwner(ctx, addedBy, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(items, func(p *Patient, _ int) Summary { return p.Summary() }), total, nil
}

// ListAll returns every profile added by addedBy, for exports.
func (s *Service) ListAll(ctx context.Context, addedBy string) ([]*Patient, error) {
	const page = 100
	var all []*Patient
	for offset := 0; ; offset += page {
		items, total, err := s.patients.ListByOwner(ctx, addedBy, page, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if offset+page >= total || len(items) == 0 {
			return all, nil
		}
	}
}

// Update validates and stores the merged editable attributes of a profile.
// Callers start from Patient.Input and overlay the patch. Login id and
// password cannot be changed here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in ProfileInput) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p.Apply(in)
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.PatientUpdated, p.ID, nil))
	return p, nil
}

// Delete removes the profile with its diet chart history and ends its sessions.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}
	s.revokeSessions(ctx, id)
	s.publish(ctx, events.New(events.PatientDeleted, id, nil))
	return nil
}

// ResetCredentials issues a new password. The login id is unchanged and the
// old password stops working immediately.
func (s *Service) ResetCredentials(ctx context.Context, id uuid.UUID) (*Created, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	password, err := GeneratePassword(s.rand)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password, HashCost)
	if err != nil {
		return nil, err
	}
	if err := s.patients.SetPasswordHash(ctx, id, hash); err != nil {
		return nil, err
	}
	p.PasswordHash = hash
	s.revokeSessions(ctx, id)
	s.publish(ctx, events.New(events.PatientCredentialsReset, id, nil))
	return &Created{Patient: p, Password: password}, nil
}

// Session is the result of a successful login.
type Session struct {
	Token   string   `json:"token"`
	Patient *Patient `json:"patient"`
}

// Authenticate verifies a login id and password. Unknown ids and wrong
// passwords both yield ErrAuthFailed and cost the same hash comparison.
func (s *Service) Authenticate(ctx context.Context, loginID, password string) (*Session, error) {
	p, err := s.patients.GetByLoginID(ctx, strings.TrimSpace(loginID))
	if errors.Is(err, ErrNotFound) {
		s.hasher.Compare(s.decoyHash(), password)
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(p.PasswordHash, password) {
		return nil, ErrAuthFailed
	}

	now := s.clock()
	if err := s.patients.SetLastLogin(ctx, p.ID, now); err != nil {
		return nil, err
	}
	p.LastLogin = &now

	var token string
	if s.sessions != nil {
		token, err = s.sessions.Issue(ctx, p.ID, p.LoginID)
		if err != nil {
			return nil, fmt.Errorf("issue session: %w", err)
		}
	}
	s.publish(ctx, events.New(events.PatientLoggedIn, p.ID, nil))
	return &Session{Token: token, Patient: p}, nil
}

func (s *Service) decoyHash() string {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash("decoy-password", HashCost)
	})
	return s.decoy
}

func (s *Service) revokeSessions(ctx context.Context, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAll(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("patient_id", id.String()).Msg("revoke patient sessions")
	}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", evt.Type).Str("patient_id", evt.PatientID.String()).Msg("publish event")
	}
}
