package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// countingRepo counts lookups that reach the store.
type countingRepo struct {
	Repository
	finds int
}

func (r *countingRepo) FindByName(ctx context.Context, name string) (*Food, error) {
	r.finds++
	return r.Repository.FindByName(ctx, name)
}

func dosa() Food {
	return Food{FoodID: "F001", Name: "Masala Dosa", Cuisine: "South Indian", Calories: 168, AyurvedicProfile: "Pitta aggravating"}
}

func TestService_LookupCachesHits(t *testing.T) {
	repo := &countingRepo{Repository: NewMemoryRepo()}
	svc := NewService(repo, 0)
	if _, err := svc.Seed(context.Background(), []Food{dosa()}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 3; i++ {
		f, err := svc.Lookup(context.Background(), "Masala Dosa")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Calories != 168 {
			t.Errorf("unexpected food %+v", f)
		}
	}
	if repo.finds != 1 {
		t.Errorf("expected one store lookup, got %d", repo.finds)
	}
}

func TestService_LookupMissNotCached(t *testing.T) {
	repo := &countingRepo{Repository: NewMemoryRepo()}
	svc := NewService(repo, 0)

	if _, err := svc.Lookup(context.Background(), "Masala Dosa"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Seed(context.Background(), []Food{dosa()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "Masala Dosa"); err != nil {
		t.Errorf("expected seeded food to be found, got %v", err)
	}
}

func TestService_SeedReplacesCachedEntry(t *testing.T) {
	svc := NewService(NewMemoryRepo(), 0)
	if _, err := svc.Seed(context.Background(), []Food{dosa()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "Masala Dosa"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := dosa()
	updated.Calories = 200
	if _, err := svc.Seed(context.Background(), []Food{updated}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, _ := svc.Lookup(context.Background(), "Masala Dosa")
	if f.Calories != 200 {
		t.Errorf("expected reseeded value, got %v", f.Calories)
	}
}

func TestService_LookupIsExact(t *testing.T) {
	svc := NewService(NewMemoryRepo(), 0)
	if _, err := svc.Seed(context.Background(), []Food{dosa()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "masala dosa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected exact match only, got %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "  "); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestService_SeedSkipsNameless(t *testing.T) {
	svc := NewService(NewMemoryRepo(), 0)
	n, err := svc.Seed(context.Background(), []Food{dosa(), {FoodID: "F002"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 seeded food, got %d", n)
	}
	if _, err := svc.Seed(context.Background(), []Food{{FoodID: "F003"}}); err == nil {
		t.Error("expected error when nothing can be seeded")
	}
}

func TestHandler_Lookup(t *testing.T) {
	svc := NewService(NewMemoryRepo(), 0)
	if _, err := svc.Seed(context.Background(), []Food{dosa()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := NewHandler(svc)

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{"found", "?name=Masala%20Dosa", http.StatusOK},
		{"missing name", "", http.StatusBadRequest},
		{"unknown", "?name=Idli", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/nutrition"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := h.Lookup(c)
			if tt.code == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				var f Food
				if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				if f.FoodID != "F001" {
					t.Errorf("unexpected food %+v", f)
				}
				return
			}
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != tt.code {
				t.Errorf("expected %d, got %v", tt.code, err)
			}
		})
	}
}
