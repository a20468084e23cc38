package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campauth/internal/auth"
	"campauth/internal/models"
)

// defaultProjection mirrors the schema's select:false fields: password and
// OTP secret are excluded unless a *WithSecrets read asks for them.
var defaultProjection = bson.M{"password": 0, "otp_secret": 0}

// Users is the MongoDB-backed user store.
type Users struct {
	col *mongo.Collection
}

func NewUsers(col *mongo.Collection) *Users {
	return &Users{col: col}
}

func (s *Users) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if _, err := s.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrDuplicateEmail
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

func (s *Users) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, auth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid}, defaultProjection)
}

func (s *Users) GetByIDWithSecrets(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, auth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid}, nil)
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, defaultProjection)
}

func (s *Users) GetByEmailWithSecrets(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, nil)
}

// UpdateDetails changes name and email and returns the updated record.
func (s *Users) UpdateDetails(ctx context.Context, id, name, email string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, auth.ErrUserNotFound
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(defaultProjection)
	var user models.User
	err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"name": name, "email": email}}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return &user, nil
}

// SetPassword replaces the stored hash and clears any pending reset token.
func (s *Users) SetPassword(ctx context.Context, id, hash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return auth.ErrUserNotFound
	}
	return s.updateOne(ctx, oid, bson.M{
		"$set":   bson.M{"password": hash},
		"$unset": bson.M{"reset_token": ""},
	})
}

// SetResetToken stores a pending reset token; nil clears it.
func (s *Users) SetResetToken(ctx context.Context, id string, t *models.PendingToken) error {
	return s.setPendingToken(ctx, id, "reset_token", t)
}

// SetConfirmToken stores a pending confirmation token; nil clears it.
func (s *Users) SetConfirmToken(ctx context.Context, id string, t *models.PendingToken) error {
	return s.setPendingToken(ctx, id, "confirm_token", t)
}

func (s *Users) setPendingToken(ctx context.Context, id, field string, t *models.PendingToken) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return auth.ErrUserNotFound
	}
	var update bson.M
	if t == nil {
		update = bson.M{"$unset": bson.M{field: ""}}
	} else {
		update = bson.M{"$set": bson.M{field: t}}
	}
	return s.updateOne(ctx, oid, update)
}

// ConfirmEmail marks the email confirmed and clears the pending token.
func (s *Users) ConfirmEmail(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return auth.ErrUserNotFound
	}
	return s.updateOne(ctx, oid, bson.M{
		"$set":   bson.M{"is_email_confirmed": true},
		"$unset": bson.M{"confirm_token": ""},
	})
}

// SetOTP flips the OTP toggle. Enabling stores the sealed secret; disabling
// removes it.
func (s *Users) SetOTP(ctx context.Context, id string, enabled bool, sealedSecret string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return auth.ErrUserNotFound
	}
	if enabled {
		return s.updateOne(ctx, oid, bson.M{
			"$set": bson.M{"otp_enabled": true, "otp_secret": sealedSecret},
		})
	}
	return s.updateOne(ctx, oid, bson.M{
		"$set":   bson.M{"otp_enabled": false},
		"$unset": bson.M{"otp_secret": ""},
	})
}

// FindByResetTokenHash matches a stored reset token hash that has not
// expired at time now.
func (s *Users) FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"reset_token.hash":       hash,
		"reset_token.expires_at": bson.M{"$gt": now},
	}, defaultProjection)
}

// FindByConfirmTokenHash matches a stored confirmation token hash on a user
// whose email is still unconfirmed.
func (s *Users) FindByConfirmTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"confirm_token.hash": hash,
		"is_email_confirmed": false,
	}, defaultProjection)
}

func (s *Users) findOne(ctx context.Context, filter, projection bson.M) (*models.User, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	var user models.User
	if err := s.col.FindOne(ctx, filter, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return &user, nil
}

func (s *Users) updateOne(ctx context.Context, oid primitive.ObjectID, update bson.M) error {
	res, err := s.col.UpdateByID(ctx, oid, update)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
