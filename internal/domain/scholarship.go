package domain

import (
	"time"
)

// Status is derived from a Scholarship on every read. It is never stored.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Scholarship is one scholarship application together with its verification outcome.
type Scholarship struct {
	ScholarshipID string `json:"id" dynamodbav:"scholarship_id"`
	Email         string `json:"email" dynamodbav:"email"`
	Profile
	ScholarshipType    *string    `json:"scholarship_type" dynamodbav:"scholarship_type,omitempty"`
	GPARequirement     *float64   `json:"gpa_requirement" dynamodbav:"gpa_requirement,omitempty"`
	Benefactor         *string    `json:"benefactor" dynamodbav:"benefactor,omitempty"`
	AcademicYear       *string    `json:"academic_year" dynamodbav:"academic_year,omitempty"`
	ContractExpiration *time.Time `json:"contract_expiration" dynamodbav:"contract_expiration,omitempty"`
	IsRevoked          bool       `json:"is_revoked" dynamodbav:"is_revoked"`
	DateVerified       *time.Time `json:"date_verified" dynamodbav:"date_verified,omitempty"`
	VerifiedBy         *string    `json:"verified_by,omitempty" dynamodbav:"verified_by,omitempty"`
	RevokedBy          *string    `json:"revoked_by,omitempty" dynamodbav:"revoked_by,omitempty"`
	Reference          *string    `json:"reference,omitempty" dynamodbav:"reference,omitempty"`
	AttachmentKeys     []string   `json:"-" dynamodbav:"attachment_keys,omitempty"`
	CreatedAt          time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// ComputeStatus derives the lifecycle status. Precedence is fixed:
// revoked > expired > verified > pending.
func ComputeStatus(s *Scholarship, now time.Time) Status {
	switch {
	case s.IsRevoked:
		return StatusRevoked
	case s.ContractExpiration != nil && s.ContractExpiration.Before(now):
		return StatusExpired
	case s.DateVerified != nil:
		return StatusVerified
	default:
		return StatusPending
	}
}

// ScholarshipView is what clients receive: the stored document plus its derived status.
type ScholarshipView struct {
	Scholarship
	Status          Status `json:"status"`
	AttachmentCount int    `json:"attachment_count"`
}

func NewScholarshipView(s Scholarship, now time.Time) ScholarshipView {
	return ScholarshipView{
		Scholarship:     s,
		Status:          ComputeStatus(&s, now),
		AttachmentCount: len(s.AttachmentKeys),
	}
}

type VerifyRequest struct {
	ScholarshipType    string     `json:"scholarship_type" validate:"required"`
	GPARequirement     *float64   `json:"gpa_requirement" validate:"omitempty,gte=0,lte=5"`
	Benefactor         string     `json:"benefactor" validate:"required"`
	AcademicYear       string     `json:"academic_year"`
	ContractExpiration *time.Time `json:"contract_expiration" validate:"required"`
}

// VerifyUpdate is the set of fields written when staff verify an application.
type VerifyUpdate struct {
	ScholarshipType    string
	GPARequirement     *float64
	Benefactor         string
	AcademicYear       *string
	ContractExpiration time.Time
	VerifiedBy         string
	VerifiedAt         time.Time
}

// SubmitRequest is the JSON part of an application submission. Attachments travel separately.
type SubmitRequest struct {
	Profile
	// Reference is the notification that asked the scholar to submit, if any.
	Reference *string `json:"reference"`
}

type TypeStatistics struct {
	ScholarshipType string  `json:"scholarship_type"`
	Count           int     `json:"count"`
	Active          int     `json:"active"`
	Expired         int     `json:"expired"`
	Total           int     `json:"total"`
	Percent         float64 `json:"percent"`
}

type Statistics struct {
	Grouped      []TypeStatistics `json:"grouped"`
	TotalCount   int              `json:"total_count"`
	TotalActive  int              `json:"total_active"`
	TotalPending int              `json:"total_pending"`
}
