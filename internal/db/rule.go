package db

import (
	"context"
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRuleCollection implements RuleCollection for MongoDB.
type MongoRuleCollection struct {
	Collection *mongo.Collection
}

// InsertRule inserts a rule and returns it with its generated ID.
func (c *MongoRuleCollection) InsertRule(ctx context.Context, rule models.MaintenanceRule) (*models.MaintenanceRule, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	rule.ID = primitive.NewObjectID()
	if _, err := c.Collection.InsertOne(ctx, rule); err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	return &rule, nil
}

func (c *MongoRuleCollection) FindRuleByID(ctx context.Context, id string) (*models.MaintenanceRule, error) {
	oid, err := objectID("maintenance rule", id)
	if err != nil {
		return nil, err
	}
	var rule models.MaintenanceRule
	if err := findOne(ctx, c.Collection, bson.M{"_id": oid}, &rule, "maintenance rule", id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// FindRules lists rules sorted by name, optionally only active ones.
func (c *MongoRuleCollection) FindRules(ctx context.Context, activeOnly bool) ([]models.MaintenanceRule, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	cursor, err := c.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find rules: %w", err)
	}
	defer cursor.Close(ctx)

	rules := []models.MaintenanceRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rules, nil
}

func (c *MongoRuleCollection) ListActiveRules(ctx context.Context) ([]models.MaintenanceRule, error) {
	return c.FindRules(ctx, true)
}

// UpdateRule replaces the stored rule definition.
func (c *MongoRuleCollection) UpdateRule(ctx context.Context, id string, rule models.MaintenanceRule) error {
	oid, err := objectID("maintenance rule", id)
	if err != nil {
		return err
	}
	rule.ID = oid
	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": oid}, rule)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.NotFound("maintenance rule %s not found", id)
	}
	return nil
}

func (c *MongoRuleCollection) DeleteRule(ctx context.Context, id string) error {
	oid, err := objectID("maintenance rule", id)
	if err != nil {
		return err
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.NotFound("maintenance rule %s not found", id)
	}
	return nil
}
