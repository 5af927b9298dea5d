package patient

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRepo_ListByOwner_StablePagesOnTiedCreatedAt(t *testing.T) {
	repo := NewMemoryRepo().(*memoryRepo)
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		p := &Patient{Name: fmt.Sprintf("Patient %d", i), LoginID: fmt.Sprintf("PAT%09d", i), AddedBy: "dr-1"}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	tied := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, p := range repo.store {
		p.CreatedAt = tied
	}

	for round := 0; round < 5; round++ {
		seen := make(map[string]bool, n)
		var order []string
		for offset := 0; offset < n; offset += 4 {
			items, total, err := repo.ListByOwner(ctx, "dr-1", 4, offset)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != n {
				t.Fatalf("expected total %d, got %d", n, total)
			}
			for _, p := range items {
				id := p.ID.String()
				if seen[id] {
					t.Fatalf("round %d: %s listed twice", round, id)
				}
				seen[id] = true
				order = append(order, id)
			}
		}
		if len(seen) != n {
			t.Fatalf("round %d: expected %d distinct profiles, got %d", round, n, len(seen))
		}
		for i := 1; i < len(order); i++ {
			if order[i-1] < order[i] {
				t.Fatalf("round %d: expected ids descending on tie, got %s before %s", round, order[i-1], order[i])
			}
		}
	}
}
