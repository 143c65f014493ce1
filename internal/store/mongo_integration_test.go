package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMongoStore(t *testing.T) {
	uri := strings.TrimSpace(os.Getenv("BUILDEA_TEST_MONGO_URI"))
	if uri == "" {
		t.Skip("BUILDEA_TEST_MONGO_URI is not set")
	}

	runStoreSuite(t, func(t *testing.T) backend {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		database := fmt.Sprintf("buildea_test_%d", time.Now().UnixNano())
		s, err := OpenMongo(ctx, uri, database)
		if err != nil {
			t.Fatalf("OpenMongo() error = %v", err)
		}
		t.Cleanup(func() {
			_ = s.db.Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}
