package sql

import (
	"civicportal/internal/entity"
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

// GetProfile loads the office profile of a representative.
func (r *GormRepository) GetProfile(ctx context.Context, userID uint) (*entity.DbProfile, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var profile entity.DbProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile creates or replaces the profile keyed by user_id.
func (r *GormRepository) UpsertProfile(ctx context.Context, profile *entity.DbProfile) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if profile == nil || profile.UserID == 0 {
		return fmt.Errorf("invalid profile")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "government_level", "jurisdiction", "district",
			"party", "position", "term_start", "term_end",
		}),
	}).Create(profile).Error
}

// GetConstituent loads the residence record of a constituent.
func (r *GormRepository) GetConstituent(ctx context.Context, userID uint) (*entity.DbConstituent, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var record entity.DbConstituent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertConstituent creates or replaces the record keyed by user_id.
func (r *GormRepository) UpsertConstituent(ctx context.Context, record *entity.DbConstituent) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if record == nil || record.UserID == 0 {
		return fmt.Errorf("invalid constituent record")
	}
	record.District = entity.NormalizeDistrict(record.District)
	if record.District == "" {
		return fmt.Errorf("district is empty")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "district", "street", "city", "state", "zip_code"}),
	}).Create(record).Error
}

// ListConstituents returns active constituents joined with their residence record.
func (r *GormRepository) ListConstituents(ctx context.Context, params *entity.ConstituentQuery) ([]entity.ConstituentEntry, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).
		Table("constituents").
		Joins("JOIN users ON users.id = constituents.user_id").
		Where("users.role = ? AND users.is_active = ?", entity.UserRoleConstituent, true)

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
		if district := entity.NormalizeDistrict(params.District); district != "" {
			query = query.Where("constituents.district = ?", district)
		}
		if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
			kw := "%" + strings.ToLower(keyword) + "%"
			query = query.Where("users.email LIKE ? OR LOWER(users.display_name) LIKE ?", kw, kw)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page, pageSize := normalizePage(base)
	offset := (page - 1) * pageSize

	var entries []entity.ConstituentEntry
	err := query.
		Select("users.id AS user_id, users.display_name AS display_name, users.email AS email, " +
			"constituents.district AS district, constituents.city AS city, constituents.state AS state").
		Order("users.display_name ASC, users.id ASC").
		Offset(offset).Limit(pageSize).
		Scan(&entries).Error
	if err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return entries, meta, nil
}
