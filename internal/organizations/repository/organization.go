package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	organizationserrors "roombook/internal/organizations/errors"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	"roombook/pkg/model"
)

const (
	CollectionName = "Organizations"
)

type OrganizationRepository interface {
	Create(ctx context.Context, organization *model.Organization) error
	FindByID(ctx context.Context, id string) (*model.Organization, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Organization, error)
	Update(ctx context.Context, id string, organization *model.Organization) error
	Delete(ctx context.Context, id string) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoOrganizationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoOrganizationRepository(cfg *config.Config) OrganizationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOrganizationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoOrganizationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoOrganizationRepository) Create(ctx context.Context, organization *model.Organization) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	organization.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, organization); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return organizationserrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

func (r *mongoOrganizationRepository) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if id == "" {
		return nil, organizationserrors.ErrInvalidID
	}

	var organization model.Organization
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&organization)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, organizationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	return &organization, nil
}

func (r *mongoOrganizationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Organization, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find organizations: %w", err)
	}
	defer cursor.Close(ctx)

	var organizations []*model.Organization
	if err = cursor.All(ctx, &organizations); err != nil {
		return nil, fmt.Errorf("failed to decode organizations: %w", err)
	}

	return organizations, nil
}

func (r *mongoOrganizationRepository) Update(ctx context.Context, id string, organization *model.Organization) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"name": organization.Name,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	if result.MatchedCount == 0 {
		return organizationserrors.ErrNotFound
	}

	return nil
}

func (r *mongoOrganizationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	if result.DeletedCount == 0 {
		return organizationserrors.ErrNotFound
	}

	return nil
}

func (r *mongoOrganizationRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check organization existence: %w", err)
	}
	return count > 0, nil
}

func (r *mongoOrganizationRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return false, fmt.Errorf("failed to check organization name: %w", err)
	}
	return count > 0, nil
}

func (r *mongoOrganizationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	return count, nil
}

func (r *mongoOrganizationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
