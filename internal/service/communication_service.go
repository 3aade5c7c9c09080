package service

import (
	"civicportal/internal/authz"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CommunicationService 代表与选民之间的消息服务
type CommunicationService struct {
	repo model.Repository

	// notifyFunc 在新消息送达时调用（由调用方设置，用于 SSE 推送）
	notifyFunc func(userID uint, comm entity.DbCommunication)
	now        func() time.Time
}

func NewCommunicationService(repo model.Repository) *CommunicationService {
	return &CommunicationService{repo: repo, now: time.Now}
}

// SetNotifyFunc 设置通知函数
func (s *CommunicationService) SetNotifyFunc(fn func(userID uint, comm entity.DbCommunication)) {
	s.notifyFunc = fn
}

// Send delivers a message from a representative's office to a constituent.
// Office members always send for their own office; only platform readers may
// name an arbitrary representative.
func (s *CommunicationService) Send(ctx context.Context, actor *entity.DbUser, req entity.CommunicationCreateRequest) (*entity.DbCommunication, error) {
	if actor == nil || !authz.HasCapability(actor.Role, authz.CommunicationsSend) {
		return nil, newError(KindAuthorization, "insufficient permissions", nil)
	}
	subject := strings.TrimSpace(req.Subject)
	message := strings.TrimSpace(req.Message)
	if subject == "" || message == "" {
		return nil, validationError("subject and message are required")
	}
	if len(subject) > 255 {
		return nil, validationError("subject is too long")
	}

	representativeID, err := sendingOffice(actor, req.RepresentativeID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, representativeID, entity.UserRoleRepresentative, "representative"); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, req.ConstituentID, entity.UserRoleConstituent, "constituent"); err != nil {
		return nil, err
	}

	comm := &entity.DbCommunication{
		RepresentativeID: representativeID,
		ConstituentID:    req.ConstituentID,
		SenderID:         actor.ID,
		Subject:          subject,
		Message:          message,
		Status:           entity.CommunicationStatusSent,
	}
	if err := s.repo.CreateCommunication(ctx, comm); err != nil {
		return nil, backendError(err)
	}

	logrus.WithFields(logrus.Fields{
		"communication_id":  comm.ID,
		"sender_id":         actor.ID,
		"representative_id": representativeID,
		"constituent_id":    comm.ConstituentID,
	}).Info("communication sent")

	if s.notifyFunc != nil {
		s.notifyFunc(comm.ConstituentID, *comm)
	}
	return comm, nil
}

func sendingOffice(actor *entity.DbUser, requested uint) (uint, error) {
	if office := actor.OfficeID(); office != 0 {
		if requested != 0 && requested != office {
			return 0, newError(KindAuthorization, "cannot send on behalf of another office", nil)
		}
		return office, nil
	}
	if !authz.HasCapability(actor.Role, authz.CommunicationsReadAll) {
		return 0, newError(KindAuthorization, "sender is not attached to a representative office", nil)
	}
	if requested == 0 {
		return 0, validationError("representative_id is required")
	}
	return requested, nil
}

func (s *CommunicationService) requireRole(ctx context.Context, userID uint, role, label string) error {
	if userID == 0 {
		return validationError(label + " is required")
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validationError(label + " not found")
		}
		return backendError(err)
	}
	if user.Role != role || !user.IsActive {
		return validationError(label + " not found")
	}
	return nil
}

// List returns the communications visible to actor. Only platform readers may
// filter freely; office members see their office, everyone else what they take part in.
func (s *CommunicationService) List(ctx context.Context, actor *entity.DbUser, query entity.CommunicationQuery) ([]entity.DbCommunication, *entity.Meta, error) {
	if actor == nil {
		return nil, nil, newError(KindAuthorization, "insufficient permissions", nil)
	}
	switch {
	case authz.HasCapability(actor.Role, authz.CommunicationsReadAll):
	case authz.HasCapability(actor.Role, authz.CommunicationsReadOwn):
		query.RepresentativeID, query.ConstituentID, query.SenderID = 0, 0, 0
		switch office := actor.OfficeID(); {
		case actor.Role == entity.UserRoleConstituent:
			query.ConstituentID = actor.ID
		case office != 0:
			query.RepresentativeID = office
		default:
			query.SenderID = actor.ID
		}
	default:
		return nil, nil, newError(KindAuthorization, "insufficient permissions", nil)
	}

	records, meta, err := s.repo.ListCommunications(ctx, &query)
	if err != nil {
		return nil, nil, backendError(err)
	}
	return records, meta, nil
}

// Get loads a communication the actor takes part in.
func (s *CommunicationService) Get(ctx context.Context, actor *entity.DbUser, id uint) (*entity.DbCommunication, error) {
	comm, err := s.repo.GetCommunication(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "communication not found", nil)
		}
		return nil, backendError(err)
	}
	if !canAccessCommunication(actor, comm) {
		// 非参与者一律视为不存在
		return nil, newError(KindNotFound, "communication not found", nil)
	}
	return comm, nil
}

// MarkRead is performed by the receiving constituent only.
func (s *CommunicationService) MarkRead(ctx context.Context, actor *entity.DbUser, id uint) (*entity.DbCommunication, error) {
	comm, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if comm.ConstituentID != actor.ID {
		return nil, newError(KindAuthorization, "only the recipient can mark a communication as read", nil)
	}
	if comm.Status == entity.CommunicationStatusRead {
		return comm, nil
	}

	status := entity.CommunicationStatusRead
	readAt := s.now().UTC()
	if err := s.repo.UpdateCommunication(ctx, comm.ID, entity.CommunicationUpdates{Status: &status, ReadAt: &readAt}); err != nil {
		return nil, backendError(err)
	}
	comm.Status = status
	comm.ReadAt = &readAt
	return comm, nil
}

func canAccessCommunication(actor *entity.DbUser, comm *entity.DbCommunication) bool {
	if actor == nil || comm == nil {
		return false
	}
	if authz.HasCapability(actor.Role, authz.CommunicationsReadAll) {
		return true
	}
	if comm.ConstituentID == actor.ID || comm.SenderID == actor.ID {
		return true
	}
	office := actor.OfficeID()
	return office != 0 && comm.RepresentativeID == office
}
