package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/platform/events"
)

// -- Fakes --

type fakeSessions struct {
	mu      sync.Mutex
	issued  map[uuid.UUID]int
	revoked map[uuid.UUID]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{issued: map[uuid.UUID]int{}, revoked: map[uuid.UUID]int{}}
}

func (f *fakeSessions) Issue(_ context.Context, id uuid.UUID, loginID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued[id]++
	return fmt.Sprintf("token-%s-%d", loginID, f.issued[id]), nil
}

func (f *fakeSessions) RevokeAll(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[id]++
	return nil
}

// takenRepo reports every login id as taken.
type takenRepo struct {
	Repository
}

func (takenRepo) LoginIDExists(context.Context, string) (bool, error) { return true, nil }

// racingRepo rejects the first n creates as duplicates.
type racingRepo struct {
	Repository
	rejections int
}

func (r *racingRepo) Create(ctx context.Context, p *Patient) error {
	if r.rejections > 0 {
		r.rejections--
		return ErrDuplicateLoginID
	}
	return r.Repository.Create(ctx, p)
}

func fastHasher() PasswordHasher {
	return BcryptHasher{MaxCost: bcrypt.MinCost}
}

// costHasher encodes the work factor into the hash and records the work
// factor of every comparison.
type costHasher struct {
	compared []string
}

func (h *costHasher) Hash(password string, cost int) (string, error) {
	return fmt.Sprintf("%d$%s", cost, password), nil
}

func (h *costHasher) Compare(hash, password string) bool {
	cost, plain, _ := strings.Cut(hash, "$")
	h.compared = append(h.compared, cost)
	return plain == password
}

func newTestService(repo Repository) (*Service, *fakeSessions, *events.Recorder) {
	sessions := newFakeSessions()
	rec := &events.Recorder{}
	svc := NewService(repo,
		WithHasher(fastHasher()),
		WithSessions(sessions),
		WithEvents(rec),
	)
	return svc, sessions, rec
}

func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func validInput() ProfileInput {
	return ProfileInput{
		Name:             "Asha Verma",
		Age:              intPtr(34),
		Gender:           Female,
		DominantPrakriti: dietplan.Vata,
		Dosha:            "Vata-Pitta",
		BP:               strPtr("120/80"),
		Weight:           floatPtr(58.5),
		Agni:             dietplan.Mandya,
	}
}

// -- Create --

func TestService_Create(t *testing.T) {
	svc, _, rec := newTestService(NewMemoryRepo())

	res, err := svc.Create(context.Background(), validInput(), "dr-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := res.Patient
	if p.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if len(p.LoginID) != 12 || !strings.HasPrefix(p.LoginID, "PAT") {
		t.Errorf("unexpected login id %q", p.LoginID)
	}
	if len(res.Password) != 8 {
		t.Errorf("expected 8 character password, got %q", res.Password)
	}
	if p.PasswordHash == "" || p.PasswordHash == res.Password {
		t.Error("expected password to be stored hashed")
	}
	if len(p.DietCharts) != 0 {
		t.Errorf("expected empty history, got %d", len(p.DietCharts))
	}
	if p.AddedBy != "dr-1" {
		t.Errorf("expected addedBy dr-1, got %s", p.AddedBy)
	}
	if types := rec.Types(); len(types) != 1 || types[0] != events.PatientCreated {
		t.Errorf("expected patient.created event, got %v", types)
	}
}

func TestService_Create_ValidationReportsAllViolations(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())

	in := ProfileInput{Name: " A ", Age: intPtr(0), BP: strPtr("12/8"), Weight: floatPtr(-1), Gender: "X"}
	_, err := svc.Create(context.Background(), in, "dr-1")
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"name", "age", "bp", "weight", "gender", "dominantPrakriti", "agni"} {
		if !fields[f] {
			t.Errorf("expected violation for %s, got %+v", f, verr.Violations)
		}
	}
}

func TestService_Create_RequiresAddedBy(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	_, err := svc.Create(context.Background(), validInput(), "  ")
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestService_Create_CollisionExhausted(t *testing.T) {
	svc, _, _ := newTestService(takenRepo{Repository: NewMemoryRepo()})
	_, err := svc.Create(context.Background(), validInput(), "dr-1")
	if !errors.Is(err, ErrCollisionExhausted) {
		t.Fatalf("expected ErrCollisionExhausted, got %v", err)
	}
}

func TestService_Create_RetriesDuplicateFromStore(t *testing.T) {
	repo := &racingRepo{Repository: NewMemoryRepo(), rejections: 3}
	svc, _, _ := newTestService(repo)
	res, err := svc.Create(context.Background(), validInput(), "dr-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Patient.LoginID == "" {
		t.Error("expected login id")
	}
}

func TestService_Create_ConcurrentLoginIDsUnique(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Create(context.Background(), validInput(), "dr-1")
			if err != nil {
				errs <- err
				return
			}
			ids <- res.Patient.LoginID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate login id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d login ids, got %d", n, len(seen))
	}
}

// -- Read / update / delete --

func TestService_GetOwned(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")

	if _, err := svc.GetOwned(context.Background(), res.Patient.ID, "dr-1"); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := svc.GetOwned(context.Background(), res.Patient.ID, "dr-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if _, err := svc.GetOwned(context.Background(), res.Patient.ID, ""); err != nil {
		t.Errorf("expected admin lookup to succeed, got %v", err)
	}
}

func TestService_List_FiltersByOwner(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	svc.Create(context.Background(), validInput(), "dr-1")
	svc.Create(context.Background(), validInput(), "dr-1")
	svc.Create(context.Background(), validInput(), "dr-2")

	items, total, err := svc.List(context.Background(), "dr-1", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 patients, got total=%d len=%d", total, len(items))
	}

	all, err := svc.ListAll(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 patients, got %d", len(all))
	}
}

func TestService_Update_KeepsCredentials(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")
	before := res.Patient

	in := validInput()
	in.Name = "Asha V."
	in.DominantPrakriti = dietplan.Kapha
	updated, err := svc.Update(context.Background(), before.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Asha V." || updated.DominantPrakriti != dietplan.Kapha {
		t.Errorf("update not applied: %+v", updated)
	}

	stored, _ := svc.Get(context.Background(), before.ID)
	if stored.LoginID != before.LoginID || stored.PasswordHash != before.PasswordHash {
		t.Error("expected credentials to be unchanged by update")
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	_, err := svc.Update(context.Background(), uuid.New(), validInput())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Update_Invalid(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")

	in := validInput()
	in.BP = strPtr("high")
	if _, err := svc.Update(context.Background(), res.Patient.ID, in); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	stored, _ := svc.Get(context.Background(), res.Patient.ID)
	if *stored.BP != "120/80" {
		t.Errorf("expected no partial write, bp=%s", *stored.BP)
	}
}

func TestService_Delete_CascadesCharts(t *testing.T) {
	repo := NewMemoryRepo()
	svc, sessions, _ := newTestService(repo)
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")
	id := res.Patient.ID

	engine := dietplan.NewEngine()
	var version int64
	var charts []dietplan.Chart
	for i := 0; i < 3; i++ {
		charts = append(charts, engine.Generate(res.Patient.Subject()))
		v, err := repo.SaveCharts(context.Background(), id, charts, version)
		if err != nil {
			t.Fatalf("save charts: %v", err)
		}
		version = v
	}

	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := repo.Charts(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected charts to be gone, got %v", err)
	}
	if sessions.revoked[id] != 1 {
		t.Errorf("expected sessions revoked once, got %d", sessions.revoked[id])
	}
	if err := svc.Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

// -- Credentials --

func TestService_Authenticate(t *testing.T) {
	svc, sessions, _ := newTestService(NewMemoryRepo())
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")

	sess, err := svc.Authenticate(context.Background(), res.Patient.LoginID, res.Password)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected session token")
	}
	if sess.Patient.LastLogin == nil {
		t.Error("expected last login to be set")
	}
	stored, _ := svc.Get(context.Background(), res.Patient.ID)
	if stored.LastLogin == nil {
		t.Error("expected last login to be persisted")
	}
	if sessions.issued[res.Patient.ID] != 1 {
		t.Errorf("expected one session issued, got %d", sessions.issued[res.Patient.ID])
	}
}

func TestService_Authenticate_FailuresIndistinguishable(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")

	_, wrongPass := svc.Authenticate(context.Background(), res.Patient.LoginID, "wrongpass")
	_, unknown := svc.Authenticate(context.Background(), "PAT_NOT_EXIST", "anything")

	if wrongPass != ErrAuthFailed || unknown != ErrAuthFailed {
		t.Fatalf("expected identical ErrAuthFailed, got %v and %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPass, unknown)
	}
}

func TestService_Authenticate_ResetAccountCostsSameAsUnknown(t *testing.T) {
	hasher := &costHasher{}
	svc := NewService(NewMemoryRepo(), WithHasher(hasher), WithSessions(newFakeSessions()))
	res, err := svc.Create(context.Background(), validInput(), "dr-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ResetCredentials(context.Background(), res.Patient.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	_, wrongPass := svc.Authenticate(context.Background(), res.Patient.LoginID, "wrongpass")
	_, unknown := svc.Authenticate(context.Background(), "PAT_NOT_EXIST", "wrongpass")
	if !errors.Is(wrongPass, ErrAuthFailed) || !errors.Is(unknown, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed twice, got %v and %v", wrongPass, unknown)
	}

	if len(hasher.compared) != 2 {
		t.Fatalf("expected one comparison per attempt, got %v", hasher.compared)
	}
	if hasher.compared[0] != hasher.compared[1] {
		t.Errorf("wrong password compared at cost %s, unknown login id at cost %s",
			hasher.compared[0], hasher.compared[1])
	}
	if want := fmt.Sprint(HashCost); hasher.compared[0] != want {
		t.Errorf("expected cost %s, got %s", want, hasher.compared[0])
	}
}

func TestService_ResetCredentials(t *testing.T) {
	svc, sessions, _ := newTestService(NewMemoryRepo())
	res, _ := svc.Create(context.Background(), validInput(), "dr-1")
	oldPassword := res.Password

	reset, err := svc.ResetCredentials(context.Background(), res.Patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reset.Patient.LoginID != res.Patient.LoginID {
		t.Error("expected login id unchanged")
	}
	if sessions.revoked[res.Patient.ID] != 1 {
		t.Error("expected sessions to be revoked")
	}

	if reset.Password != oldPassword {
		if _, err := svc.Authenticate(context.Background(), res.Patient.LoginID, oldPassword); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("expected old password rejected, got %v", err)
		}
	}
	if _, err := svc.Authenticate(context.Background(), res.Patient.LoginID, reset.Password); err != nil {
		t.Errorf("expected new password accepted, got %v", err)
	}
}

func TestService_ResetCredentials_NotFound(t *testing.T) {
	svc, _, _ := newTestService(NewMemoryRepo())
	if _, err := svc.ResetCredentials(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
