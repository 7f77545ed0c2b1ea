package domain

import "time"

type Skill struct {
	ID              int64     `json:"id"`
	OrganizationID  int64     `json:"organizationID"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	IsCertification bool      `json:"isCertification"`
	CreatedAt       time.Time `json:"createdAt"`
}

type SkillAssignment struct {
	ID                  int64      `json:"id"`
	ResourceID          int64      `json:"resourceID"`
	SkillID             int64      `json:"skillID"`
	ProficiencyLevel    int32      `json:"proficiencyLevel"`
	CertificationNumber string     `json:"certificationNumber"`
	CertificationIssuer string     `json:"certificationIssuer"`
	CertifiedOn         *time.Time `json:"certifiedOn"`
	ExpiresOn           *time.Time `json:"expiresOn"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// ValidOn 判断证书在 t 所在的日历日是否仍然有效（过期日当天仍视为有效）
func (s *SkillAssignment) ValidOn(t time.Time) bool {
	if s.ExpiresOn == nil {
		return true
	}
	y, m, d := s.ExpiresOn.Date()
	ty, tm, td := t.Date()
	expires := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	day := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return !day.After(expires)
}
