package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new user; username and email are unique.
func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	if c.Collection == nil {
		return errNilCollection
	}
	if _, err := c.Collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("username or email already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID("user", id)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := findOne(ctx, c.Collection, bson.M{"_id": oid}, &user, "user", id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *MongoUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := findOne(ctx, c.Collection, bson.M{"username": username}, &user, "user", username); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := findOne(ctx, c.Collection, bson.M{"email": email}, &user, "user", email); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser replaces the stored user.
func (c *MongoUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	oid, err := objectID("user", id)
	if err != nil {
		return err
	}
	user.ID = oid
	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": oid}, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.NotFound("user %s not found", id)
	}
	return nil
}

func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := objectID("user", id)
	if err != nil {
		return err
	}
	_, err = c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"last_login": at, "updated_at": at}},
	)
	return err
}
