// Package domain holds the advisor pool read model and the assignments a
// matching run produces.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AdvisorProfile is the slice of an advisor the matcher reads. Specialty
// and language values are stored as normalized slugs.
type AdvisorProfile struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	DisplayName     string         `gorm:"type:varchar(255);not null" json:"display_name"`
	Email           *string        `gorm:"type:varchar(255)" json:"email"`
	Active          bool           `gorm:"not null;default:true;index" json:"active"`
	Available       bool           `gorm:"not null;default:true" json:"available"`
	Specialties     datatypes.JSON `json:"specialties"`
	Languages       datatypes.JSON `json:"languages"`
	RatingScore     int64          `gorm:"not null;default:0" json:"rating_score"`
	ExperienceYears int64          `gorm:"not null;default:0" json:"experience_years"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AdvisorProfile) TableName() string { return "advisor_profiles" }

// SpecialtySlugs decodes the stored specialty slugs.
func (p *AdvisorProfile) SpecialtySlugs() []string {
	return decodeSlugs(p.Specialties)
}

// LanguageSlugs decodes the stored language slugs.
func (p *AdvisorProfile) LanguageSlugs() []string {
	return decodeSlugs(p.Languages)
}

func decodeSlugs(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

// AssignmentStatus is the state of one candidate-advisor offer.
type AssignmentStatus string

const (
	AssignmentOffered  AssignmentStatus = "offered"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentDeclined AssignmentStatus = "declined"
	AssignmentExpired  AssignmentStatus = "expired"
)

// RequestAssignment is one row per (request, candidate advisor) from a
// matching run. A fresh run deletes and replaces the request's rows, so
// re-matching is idempotent.
type RequestAssignment struct {
	ID        snowflake.ID     `gorm:"primaryKey" json:"id"`
	RequestID snowflake.ID     `gorm:"not null;index" json:"request_id"`
	AdvisorID snowflake.ID     `gorm:"not null;index" json:"advisor_id"`
	Rank      int              `gorm:"not null" json:"rank"`
	Score     int64            `gorm:"not null" json:"score"`
	Status    AssignmentStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RequestAssignment) TableName() string { return "request_assignments" }

// Score ranks an advisor for a request: the requester's priority weight
// dominates, then rating, then experience.
func Score(priorityWeight int64, advisor *AdvisorProfile) int64 {
	return priorityWeight*1000 + advisor.RatingScore + advisor.ExperienceYears*10
}
