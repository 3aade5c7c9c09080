package entity

import "time"

const (
	CommunicationStatusPending   = "pending"
	CommunicationStatusSent      = "sent"
	CommunicationStatusDelivered = "delivered"
	CommunicationStatusRead      = "read"
)

// DbCommunication is a message from a representative's office to a constituent.
type DbCommunication struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	RepresentativeID uint       `gorm:"column:representative_id;index;not null" json:"representative_id"`
	ConstituentID    uint       `gorm:"column:constituent_id;index;not null" json:"constituent_id"`
	SenderID         uint       `gorm:"column:sender_id;not null" json:"sender_id"`
	Subject          string     `gorm:"column:subject;type:varchar(255);not null" json:"subject"`
	Message          string     `gorm:"column:message;type:text;not null" json:"message"`
	Status           string     `gorm:"column:status;type:varchar(16);index;not null;default:pending" json:"status"`
	ReadAt           *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
}

// CommunicationQuery filters communications by participant.
type CommunicationQuery struct {
	BaseParams
	RepresentativeID uint   `json:"-" form:"-"`
	ConstituentID    uint   `json:"-" form:"-"`
	SenderID         uint   `json:"-" form:"-"`
	Status           string `json:"status" form:"status" query:"status"`
}

type CommunicationCreateRequest struct {
	ConstituentID    uint   `json:"constituent_id" binding:"required"`
	RepresentativeID uint   `json:"representative_id"`
	Subject          string `json:"subject" binding:"required"`
	Message          string `json:"message" binding:"required"`
}

type CommunicationListResponse struct {
	Communications []DbCommunication `json:"communications"`
	Meta           *Meta             `json:"meta"`
}
