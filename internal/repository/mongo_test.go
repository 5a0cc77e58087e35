package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/tj/assert"
)

func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI is not set")
	}

	runRepositoryTests(t, func(t *testing.T) Store {
		ctx := context.Background()
		dbName := fmt.Sprintf("weather_test_%d", time.Now().UnixNano())

		repo, err := NewMongo(ctx, uri, dbName)
		assert.Nil(t, err)

		t.Cleanup(func() {
			assert.Nil(t, repo.db.Drop(context.Background()))
			assert.Nil(t, repo.Close())
		})

		return repo
	})
}
