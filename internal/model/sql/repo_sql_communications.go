package sql

import (
	"civicportal/internal/entity"
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// CreateCommunication inserts a new communication.
func (r *GormRepository) CreateCommunication(ctx context.Context, comm *entity.DbCommunication) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if comm == nil {
		return fmt.Errorf("communication is nil")
	}
	if comm.Status == "" {
		comm.Status = entity.CommunicationStatusPending
	}
	return r.db.WithContext(ctx).Create(comm).Error
}

// GetCommunication loads a communication by ID.
func (r *GormRepository) GetCommunication(ctx context.Context, id uint) (*entity.DbCommunication, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid communication id")
	}
	var comm entity.DbCommunication
	if err := r.db.WithContext(ctx).First(&comm, id).Error; err != nil {
		return nil, err
	}
	return &comm, nil
}

// UpdateCommunication updates a communication with the provided fields.
func (r *GormRepository) UpdateCommunication(ctx context.Context, id uint, updates entity.CommunicationUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid communication id")
	}
	if updates.IsEmpty() {
		return fmt.Errorf("no updates provided")
	}
	result := r.db.WithContext(ctx).Model(&entity.DbCommunication{}).Where("id = ?", id).Updates(updates.ToMap())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCommunications retrieves paginated communications, newest first.
func (r *GormRepository) ListCommunications(ctx context.Context, params *entity.CommunicationQuery) ([]entity.DbCommunication, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbCommunication{})
	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
		if params.RepresentativeID > 0 {
			query = query.Where("representative_id = ?", params.RepresentativeID)
		}
		if params.ConstituentID > 0 {
			query = query.Where("constituent_id = ?", params.ConstituentID)
		}
		if params.SenderID > 0 {
			query = query.Where("sender_id = ?", params.SenderID)
		}
		if status := strings.ToLower(strings.TrimSpace(params.Status)); status != "" && status != "all" {
			query = query.Where("status = ?", status)
		}
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	page, pageSize := normalizePage(base)
	offset := (page - 1) * pageSize

	var records []entity.DbCommunication
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, nil, err
	}

	return records, r.calculatePagination(totalCount, page, pageSize), nil
}
