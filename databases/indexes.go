package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureIndexes creates the indexes the service relies on. The unique caseNumber index
// turns a same-day numbering race into a duplicate key error the lifecycle retries.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	caseIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "caseNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "reportedBy", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if err := db.Collection(caseName).CreateIndexes(ctx, caseIndexes); err != nil {
		return fmt.Errorf("create %s indexes: %w", caseName, err)
	}

	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}
	if err := db.Collection(userName).CreateIndexes(ctx, userIndexes); err != nil {
		return fmt.Errorf("create %s indexes: %w", userName, err)
	}

	zap.S().Infow("indexes ensured", "collections", []string{caseName, userName})
	return nil
}
