package nutrition

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurclinic/clinic/internal/platform/db"
)

type nutritionRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &nutritionRepoPG{pool: pool}
}

const foodCols = `food_id, name, cuisine, category, sub_category, calories, protein, fat, carbs,
	fiber, sugar, allergens, ayurvedic_profile, vegan, vegetarian, origin, popularity_score`

func (r *nutritionRepoPG) FindByName(ctx context.Context, name string) (*Food, error) {
	var f Food
	err := r.pool.QueryRow(ctx, `SELECT `+foodCols+` FROM nutrition WHERE name = $1 LIMIT 1`, name).Scan(
		&f.FoodID, &f.Name, &f.Cuisine, &f.Category, &f.SubCategory, &f.Calories, &f.Protein, &f.Fat,
		&f.Carbs, &f.Fiber, &f.Sugar, &f.Allergens, &f.AyurvedicProfile, &f.Vegan, &f.Vegetarian,
		&f.Origin, &f.PopularityScore,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find food: %w", err)
	}
	return &f, nil
}

func (r *nutritionRepoPG) Upsert(ctx context.Context, foods []Food) (int, error) {
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		batch := &pgx.Batch{}
		for _, f := range foods {
			batch.Queue(`
				INSERT INTO nutrition (`+foodCols+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
				ON CONFLICT (food_id) DO UPDATE SET
					name = EXCLUDED.name, cuisine = EXCLUDED.cuisine, category = EXCLUDED.category,
					sub_category = EXCLUDED.sub_category, calories = EXCLUDED.calories,
					protein = EXCLUDED.protein, fat = EXCLUDED.fat, carbs = EXCLUDED.carbs,
					fiber = EXCLUDED.fiber, sugar = EXCLUDED.sugar, allergens = EXCLUDED.allergens,
					ayurvedic_profile = EXCLUDED.ayurvedic_profile, vegan = EXCLUDED.vegan,
					vegetarian = EXCLUDED.vegetarian, origin = EXCLUDED.origin,
					popularity_score = EXCLUDED.popularity_score`,
				f.Key(), f.Name, f.Cuisine, f.Category, f.SubCategory, f.Calories, f.Protein, f.Fat,
				f.Carbs, f.Fiber, f.Sugar, f.Allergens, f.AyurvedicProfile, f.Vegan, f.Vegetarian,
				f.Origin, f.PopularityScore,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("upsert foods: %w", err)
	}
	return len(foods), nil
}
