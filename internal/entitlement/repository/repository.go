package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/entitlement/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertFeature(ctx context.Context, db *gorm.DB, feature *domain.Feature) error {
	return db.WithContext(ctx).Create(feature).Error
}

func (r *repo) FindFeatureBySlug(ctx context.Context, db *gorm.DB, orgID snowflake.ID, slug string) (*domain.Feature, error) {
	var feature domain.Feature
	err := db.WithContext(ctx).Where("org_id = ? AND slug = ?", orgID, slug).First(&feature).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &feature, nil
}

func (r *repo) ListFeatures(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Feature, error) {
	var features []domain.Feature
	err := db.WithContext(ctx).Where("org_id = ?", orgID).Order("slug ASC").Find(&features).Error
	return features, err
}

func (r *repo) AttachToPlan(ctx context.Context, db *gorm.DB, link *domain.PlanFeature) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
}

// FindPlanWithFeature returns the first of planIDs that includes featureID.
func (r *repo) FindPlanWithFeature(ctx context.Context, db *gorm.DB, featureID snowflake.ID, planIDs []snowflake.ID) (*snowflake.ID, error) {
	if len(planIDs) == 0 {
		return nil, nil
	}
	var links []domain.PlanFeature
	err := db.WithContext(ctx).
		Where("feature_id = ? AND plan_id IN ?", featureID, planIDs).
		Limit(1).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &links[0].PlanID, nil
}

func (r *repo) UpsertEntitlement(ctx context.Context, db *gorm.DB, entitlement *domain.Entitlement) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}, {Name: "feature_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted", "expires_at", "updated_at"}),
	}).Create(entitlement).Error
}

func (r *repo) FindEntitlement(ctx context.Context, db *gorm.DB, orgID, customerID, featureID snowflake.ID) (*domain.Entitlement, error) {
	var entitlement domain.Entitlement
	err := db.WithContext(ctx).
		Where("org_id = ? AND customer_id = ? AND feature_id = ?", orgID, customerID, featureID).
		First(&entitlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}
