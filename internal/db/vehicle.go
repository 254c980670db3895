package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoVehicleCollection implements VehicleCollection for MongoDB.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a vehicle record into the collection.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	vehicle.ID = primitive.NewObjectID()
	if _, err := c.Collection.InsertOne(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return &vehicle, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	oid, err := objectID("vehicle", id)
	if err != nil {
		return nil, err
	}
	var vehicle models.Vehicle
	if err := findOne(ctx, c.Collection, bson.M{"_id": oid}, &vehicle, "vehicle", id); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// FindVehicles queries vehicle records from the collection.
func (c *MongoVehicleCollection) FindVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	query := bson.M{}
	if filter.DriverID != "" {
		query["driver_id"] = filter.DriverID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	cursor, err := c.Collection.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	vehicles := []models.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

// UpdateMileage sets the odometer. The filter refuses to move it backwards.
func (c *MongoVehicleCollection) UpdateMileage(ctx context.Context, id string, mileage int) error {
	oid, err := objectID("vehicle", id)
	if err != nil {
		return err
	}
	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid, "current_mileage": bson.M{"$lte": mileage}},
		bson.M{"$set": bson.M{"current_mileage": mileage, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("update mileage: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := c.FindVehicleByID(ctx, id); err != nil {
			return err
		}
		return apperrors.Validation("mileage %d is below the vehicle's current odometer", mileage)
	}
	return nil
}
