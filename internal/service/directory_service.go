package service

import (
	"civicportal/internal/authz"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DirectoryService 议员公开档案与选民名录
type DirectoryService struct {
	repo model.Repository
}

func NewDirectoryService(repo model.Repository) *DirectoryService {
	return &DirectoryService{repo: repo}
}

func (s *DirectoryService) requireRepresentative(ctx context.Context, id uint) error {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindNotFound, "representative not found", nil)
		}
		return backendError(err)
	}
	if user.Role != entity.UserRoleRepresentative || !user.IsActive {
		return newError(KindNotFound, "representative not found", nil)
	}
	return nil
}

// RepresentativeProfile is readable by any signed-in user.
func (s *DirectoryService) RepresentativeProfile(ctx context.Context, representativeID uint) (*entity.DbProfile, error) {
	if err := s.requireRepresentative(ctx, representativeID); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, representativeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "profile not found", nil)
		}
		return nil, backendError(err)
	}
	return profile, nil
}

// UpdateRepresentativeProfile replaces the office profile. Office members may
// only edit their own office; platform managers may edit any.
func (s *DirectoryService) UpdateRepresentativeProfile(ctx context.Context, actor *entity.DbUser, representativeID uint, req entity.ProfileUpdateRequest) (*entity.DbProfile, error) {
	if actor == nil || !authz.HasCapability(actor.Role, authz.ProfilesManage) {
		return nil, newError(KindAuthorization, "insufficient permissions", nil)
	}
	office := actor.OfficeID()
	if (office != 0 && office != representativeID) || (office == 0 && entity.IsRepresentativeOffice(actor.Role)) {
		return nil, newError(KindAuthorization, "cannot edit another office's profile", nil)
	}
	if err := s.requireRepresentative(ctx, representativeID); err != nil {
		return nil, err
	}

	level := strings.ToLower(strings.TrimSpace(req.GovernmentLevel))
	if !entity.IsValidGovernmentLevel(level) {
		return nil, validationError("invalid government level")
	}
	jurisdiction := strings.TrimSpace(req.Jurisdiction)
	district := entity.NormalizeDistrict(req.District)
	if jurisdiction == "" || district == "" {
		return nil, validationError("jurisdiction and district are required")
	}
	if req.TermStart != nil && req.TermEnd != nil && !req.TermEnd.After(*req.TermStart) {
		return nil, validationError("term must end after it starts")
	}

	profile := &entity.DbProfile{
		UserID:          representativeID,
		GovernmentLevel: level,
		Jurisdiction:    jurisdiction,
		District:        district,
		Party:           strings.TrimSpace(req.Party),
		Position:        strings.TrimSpace(req.Position),
		TermStart:       req.TermStart,
		TermEnd:         req.TermEnd,
	}
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, backendError(err)
	}
	logrus.WithFields(logrus.Fields{
		"representative_id": representativeID,
		"district":          district,
		"actor_id":          actor.ID,
	}).Info("representative profile updated")
	return s.RepresentativeProfile(ctx, representativeID)
}

// ConstituentRecord returns the caller's own residence record.
func (s *DirectoryService) ConstituentRecord(ctx context.Context, actor *entity.DbUser) (*entity.DbConstituent, error) {
	if actor == nil || actor.Role != entity.UserRoleConstituent {
		return nil, newError(KindAuthorization, "only constituents have a residence record", nil)
	}
	record, err := s.repo.GetConstituent(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "residence record not found", nil)
		}
		return nil, backendError(err)
	}
	return record, nil
}

// UpdateConstituentRecord lets a constituent set their district and address.
func (s *DirectoryService) UpdateConstituentRecord(ctx context.Context, actor *entity.DbUser, req entity.ConstituentUpdateRequest) (*entity.DbConstituent, error) {
	if actor == nil || actor.Role != entity.UserRoleConstituent {
		return nil, newError(KindAuthorization, "only constituents have a residence record", nil)
	}
	district := entity.NormalizeDistrict(req.District)
	if district == "" {
		return nil, validationError("district is required")
	}
	record := &entity.DbConstituent{
		UserID:   actor.ID,
		District: district,
		Street:   strings.TrimSpace(req.Street),
		City:     strings.TrimSpace(req.City),
		State:    strings.TrimSpace(req.State),
		ZipCode:  strings.TrimSpace(req.ZipCode),
	}
	if err := s.repo.UpsertConstituent(ctx, record); err != nil {
		return nil, backendError(err)
	}
	return s.ConstituentRecord(ctx, actor)
}

// ListConstituents returns the directory visible to actor. Office members are
// pinned to the district on their office profile.
func (s *DirectoryService) ListConstituents(ctx context.Context, actor *entity.DbUser, query entity.ConstituentQuery) ([]entity.ConstituentEntry, string, *entity.Meta, error) {
	if actor == nil || !authz.HasCapability(actor.Role, authz.ConstituentsRead) {
		return nil, "", nil, newError(KindAuthorization, "insufficient permissions", nil)
	}

	office := actor.OfficeID()
	switch {
	case office != 0:
		profile, err := s.repo.GetProfile(ctx, office)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", nil, validationError("the office profile has no district yet")
			}
			return nil, "", nil, backendError(err)
		}
		query.District = profile.District
	case entity.IsRepresentativeOffice(actor.Role):
		return nil, "", nil, newError(KindAuthorization, "not attached to a representative office", nil)
	}
	query.District = entity.NormalizeDistrict(query.District)

	entries, meta, err := s.repo.ListConstituents(ctx, &query)
	if err != nil {
		return nil, "", nil, backendError(err)
	}
	return entries, query.District, meta, nil
}
