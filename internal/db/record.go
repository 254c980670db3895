package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecordCollection implements RecordCollection for MongoDB. It depends on the
// one_open_record_per_pair index created by EnsureIndexes.
type MongoRecordCollection struct {
	Collection *mongo.Collection
}

// CreateOpenRecord inserts an open record. The unique partial index rejects a second
// open record for the same vehicle and rule.
func (c *MongoRecordCollection) CreateOpenRecord(ctx context.Context, record models.MaintenanceRecord) (*models.MaintenanceRecord, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	record.ID = primitive.NewObjectID()
	record.Open = true
	if _, err := c.Collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("vehicle %s already has an open record for rule %s", record.VehicleID, record.RuleID)
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return &record, nil
}

func (c *MongoRecordCollection) FindRecordByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	oid, err := objectID("maintenance record", id)
	if err != nil {
		return nil, err
	}
	var record models.MaintenanceRecord
	if err := findOne(ctx, c.Collection, bson.M{"_id": oid}, &record, "maintenance record", id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindRecords queries records newest scheduled date first.
func (c *MongoRecordCollection) FindRecords(ctx context.Context, filter models.RecordFilter) ([]models.MaintenanceRecord, error) {
	cursor, err := c.Collection.Find(ctx, recordQuery(filter), options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	return decodeRecords(ctx, cursor)
}

func recordQuery(filter models.RecordFilter) bson.M {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	switch {
	case filter.VehicleID != "":
		query["vehicle_id"] = filter.VehicleID
	case len(filter.VehicleIDs) > 0:
		query["vehicle_id"] = bson.M{"$in": filter.VehicleIDs}
	}
	if r := filter.DateRange; r != nil {
		window := bson.M{}
		if !r.Start.IsZero() {
			window["$gte"] = r.Start
		}
		if !r.End.IsZero() {
			window["$lte"] = r.End
		}
		if len(window) > 0 {
			query["scheduled_date"] = window
		}
	}
	return query
}

func (c *MongoRecordCollection) OpenRecord(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error) {
	return c.findOptional(ctx, bson.M{"vehicle_id": vehicleID, "rule_id": ruleID, "open": true}, nil)
}

func (c *MongoRecordCollection) LastCompleted(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "completed_at", Value: -1}})
	return c.findOptional(ctx, bson.M{"vehicle_id": vehicleID, "rule_id": ruleID, "status": models.RecordCompleted}, opts)
}

func (c *MongoRecordCollection) findOptional(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.MaintenanceRecord, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	var record models.MaintenanceRecord
	var err error
	if opts != nil {
		err = c.Collection.FindOne(ctx, filter, opts).Decode(&record)
	} else {
		err = c.Collection.FindOne(ctx, filter).Decode(&record)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// LatestCompletions groups completed records by pair and keeps the newest of each.
func (c *MongoRecordCollection) LatestCompletions(ctx context.Context) ([]models.MaintenanceRecord, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.RecordCompleted}}},
		{{Key: "$sort", Value: bson.D{{Key: "completed_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":    bson.M{"vehicle_id": "$vehicle_id", "rule_id": "$rule_id"},
			"latest": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$latest"}}},
	}
	cursor, err := c.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate completions: %w", err)
	}
	return decodeRecords(ctx, cursor)
}

func (c *MongoRecordCollection) ListOpenRecords(ctx context.Context) ([]models.MaintenanceRecord, error) {
	cursor, err := c.Collection.Find(ctx, bson.M{"open": true})
	if err != nil {
		return nil, fmt.Errorf("find open records: %w", err)
	}
	return decodeRecords(ctx, cursor)
}

// PromoteRecord moves a scheduled record to pending; it fails with a conflict if
// another caller changed the record first.
func (c *MongoRecordCollection) PromoteRecord(ctx context.Context, id string, at time.Time) error {
	oid, err := objectID("maintenance record", id)
	if err != nil {
		return err
	}
	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid, "status": models.RecordScheduled},
		bson.M{"$set": bson.M{"status": models.RecordPending, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("promote record: %w", err)
	}
	if result.MatchedCount == 0 {
		return c.missOrConflict(ctx, id, "is no longer scheduled")
	}
	return nil
}

// CompleteRecord stores the completed record if it was not completed concurrently.
func (c *MongoRecordCollection) CompleteRecord(ctx context.Context, record models.MaintenanceRecord) error {
	id := record.ID.Hex()
	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": record.ID, "status": bson.M{"$ne": models.RecordCompleted}},
		bson.M{"$set": bson.M{
			"status":             record.Status,
			"open":               record.Open,
			"mileage_at_service": record.MileageAtService,
			"completed_at":       record.CompletedAt,
			"cost":               record.Cost,
			"notes":              record.Notes,
			"updated_at":         record.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("complete record: %w", err)
	}
	if result.MatchedCount == 0 {
		return c.missOrConflict(ctx, id, "is already completed")
	}
	return nil
}

func (c *MongoRecordCollection) missOrConflict(ctx context.Context, id, reason string) error {
	if _, err := c.FindRecordByID(ctx, id); err != nil {
		return err
	}
	return apperrors.Conflict("maintenance record %s %s", id, reason)
}

func decodeRecords(ctx context.Context, cursor *mongo.Cursor) ([]models.MaintenanceRecord, error) {
	defer cursor.Close(ctx)
	records := []models.MaintenanceRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
