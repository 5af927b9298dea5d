package nutrition

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName matches the collection the clinic's nutrition dataset is
// imported into.
const CollectionName = "nutrition"

type nutritionRepoMongo struct {
	coll *mongo.Collection
}

func NewRepoMongo(database *mongo.Database) Repository {
	return &nutritionRepoMongo{coll: database.Collection(CollectionName)}
}

func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(CollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create nutrition index: %w", err)
	}
	return nil
}

func (r *nutritionRepoMongo) FindByName(ctx context.Context, name string) (*Food, error) {
	var f Food
	err := r.coll.FindOne(ctx, bson.M{"name": name}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find food: %w", err)
	}
	return &f, nil
}

func (r *nutritionRepoMongo) Upsert(ctx context.Context, foods []Food) (int, error) {
	if len(foods) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(foods))
	for _, f := range foods {
		f.FoodID = f.Key()
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"food_id": f.FoodID}).
			SetReplacement(f).
			SetUpsert(true))
	}
	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("upsert foods: %w", err)
	}
	return int(res.UpsertedCount + res.MatchedCount), nil
}
