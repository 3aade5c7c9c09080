package entity

import (
	"strings"
	"time"
)

const (
	GovernmentLevelFederal        = "federal"
	GovernmentLevelState          = "state"
	GovernmentLevelCounty         = "county"
	GovernmentLevelMunicipal      = "municipal"
	GovernmentLevelSchoolDistrict = "school_district"
)

// IsValidGovernmentLevel reports whether level is a known tier; empty is allowed.
func IsValidGovernmentLevel(level string) bool {
	switch level {
	case "", GovernmentLevelFederal, GovernmentLevelState, GovernmentLevelCounty,
		GovernmentLevelMunicipal, GovernmentLevelSchoolDistrict:
		return true
	}
	return false
}

// NormalizeDistrict 去空白并统一大写，作为选区查询键
func NormalizeDistrict(district string) string {
	return strings.ToUpper(strings.TrimSpace(district))
}

// DbProfile is the public office record of a representative.
type DbProfile struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	UserID          uint       `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	GovernmentLevel string     `gorm:"column:government_level;type:varchar(32)" json:"government_level,omitempty"`
	Jurisdiction    string     `gorm:"column:jurisdiction;type:varchar(255)" json:"jurisdiction"`
	District        string     `gorm:"column:district;type:varchar(64);index" json:"district"`
	Party           string     `gorm:"column:party;type:varchar(128)" json:"party,omitempty"`
	Position        string     `gorm:"column:position;type:varchar(255)" json:"position,omitempty"`
	TermStart       *time.Time `gorm:"column:term_start" json:"term_start,omitempty"`
	TermEnd         *time.Time `gorm:"column:term_end" json:"term_end,omitempty"`
}

func (DbProfile) TableName() string {
	return "profiles"
}

// DbConstituent holds where a constituent lives, which decides their district.
type DbConstituent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	District  string    `gorm:"column:district;type:varchar(64);index;not null" json:"district"`
	Street    string    `gorm:"column:street;type:varchar(255)" json:"street"`
	City      string    `gorm:"column:city;type:varchar(128)" json:"city"`
	State     string    `gorm:"column:state;type:varchar(64)" json:"state"`
	ZipCode   string    `gorm:"column:zip_code;type:varchar(16)" json:"zip_code"`
}

func (DbConstituent) TableName() string {
	return "constituents"
}

type ProfileUpdateRequest struct {
	GovernmentLevel string     `json:"government_level"`
	Jurisdiction    string     `json:"jurisdiction" binding:"required"`
	District        string     `json:"district" binding:"required"`
	Party           string     `json:"party"`
	Position        string     `json:"position"`
	TermStart       *time.Time `json:"term_start"`
	TermEnd         *time.Time `json:"term_end"`
}

type ConstituentUpdateRequest struct {
	District string `json:"district" binding:"required"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
}

// ConstituentQuery 选民名录查询
type ConstituentQuery struct {
	BaseParams
	District string `json:"district" form:"district" query:"district"`
	Keyword  string `json:"keyword" form:"keyword" query:"keyword"`
}

// ConstituentEntry is one row of the constituent directory. Street addresses stay private.
type ConstituentEntry struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	District    string `json:"district"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
}

type ConstituentListResponse struct {
	District     string             `json:"district,omitempty"`
	Constituents []ConstituentEntry `json:"constituents"`
	Meta         *Meta              `json:"meta"`
}
