package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository handles database operations related to users.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// CreateUser inserts a new user into the database.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.LastActiveAt.IsZero() {
		user.LastActiveAt = now
	}

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert user into database")
		return nil, fmt.Errorf("failed to insert user: %w", translate(err))
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		logrus.Error("Failed to cast inserted ID to ObjectID")
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	user.ID = insertedID

	logrus.WithField("userID", user.ID.Hex()).Info("User inserted successfully")
	return user, nil
}

// GetUserByWallet retrieves a user by lowercase wallet address.
func (r *UserRepository) GetUserByWallet(ctx context.Context, address string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"wallet_address": address})
}

// GetUserByEmail retrieves a user by lowercase email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to find user: %w", translate(err))
	}
	return &user, nil
}

// MergeProfile sets the non-empty profile fields and the activity timestamp
// without clearing anything the caller did not supply.
func (r *UserRepository) MergeProfile(ctx context.Context, id primitive.ObjectID, profile models.UserProfile, seenAt time.Time) (*models.User, error) {
	set := bson.M{"last_active_at": seenAt, "updated_at": time.Now()}
	if profile.Name != "" {
		set["name"] = profile.Name
	}
	if profile.Email != "" {
		set["email"] = profile.Email
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"userID": id.Hex(),
			"error":  err,
		}).Error("Failed to merge user profile")
		return nil, fmt.Errorf("failed to update user: %w", translate(err))
	}
	return &user, nil
}

// SetRole moves a user from one role to another. It fails with ErrConflict
// if the user no longer holds the expected role.
func (r *UserRepository) SetRole(ctx context.Context, id primitive.ObjectID, from, to models.Role) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "role": from},
		bson.M{"$set": bson.M{"role": to, "updated_at": time.Now()}},
		opts,
	).Decode(&user)
	if err != nil {
		err = translate(err)
		if errors.Is(err, ErrNotFound) {
			if _, lookupErr := r.GetUserByID(ctx, id); lookupErr == nil {
				return nil, ErrConflict
			}
		}
		return nil, fmt.Errorf("failed to set role: %w", err)
	}

	logrus.WithFields(logrus.Fields{"userID": id.Hex(), "role": to}).Info("User role updated")
	return &user, nil
}

// UpdateLastActive stamps the user's last activity time.
func (r *UserRepository) UpdateLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_active_at": at}})
	if err != nil {
		return fmt.Errorf("failed to update last active: %w", err)
	}
	return nil
}

// GetUsersByRole lists users holding the given role, oldest first.
func (r *UserRepository) GetUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
