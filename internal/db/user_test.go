package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoUserCollection_Integration(t *testing.T) {
	database := testDatabase(t)
	ctx := context.Background()
	users := &MongoUserCollection{Collection: database.Collection(UsersCollection)}

	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, users.InsertUser(ctx, user))

	dup := user
	dup.ID = primitive.NewObjectID()
	assert.ErrorIs(t, users.InsertUser(ctx, dup), apperrors.ErrConflict)

	byName, err := users.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := users.FindUserByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = users.FindUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	byName.FirstName = "Test"
	require.NoError(t, users.UpdateUser(ctx, user.ID.Hex(), *byName))

	login := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, users.UpdateLastLogin(ctx, user.ID.Hex(), login))

	found, err := users.FindUserByID(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Test", found.FirstName)
	require.NotNil(t, found.LastLogin)
	assert.True(t, login.Equal(*found.LastLogin))
}

func TestMongoUserCollection_BadID(t *testing.T) {
	users := &MongoUserCollection{}
	_, err := users.FindUserByID(context.Background(), "zzz")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
