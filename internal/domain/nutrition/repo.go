package nutrition

import "context"

type Repository interface {
	// FindByName matches the name exactly.
	FindByName(ctx context.Context, name string) (*Food, error)
	// Upsert inserts or replaces foods by Key and returns how many were written.
	Upsert(ctx context.Context, foods []Food) (int, error)
}
