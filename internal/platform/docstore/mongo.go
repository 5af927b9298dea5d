// Package docstore connects to the MongoDB document backend.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ayurclinic/clinic/internal/platform/db"
)

const connectTimeout = 10 * time.Second

// Store holds the client and the database every repository works against.
type Store struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectTimeout).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{Client: client, Database: client.Database(database)}, nil
}

// Check adapts the store to the health endpoint.
func (s *Store) Check() db.Check {
	return db.Check{
		Name: "mongo",
		Ping: func(ctx context.Context) error {
			return s.Client.Ping(ctx, readpref.Primary())
		},
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}
