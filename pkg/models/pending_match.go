package models

import (
	"time"
)

// PendingMatch statuses
const (
	PendingMatchStatusPending  = "pending"
	PendingMatchStatusApproved = "approved"
	PendingMatchStatusRejected = "rejected"
)

// IsValidPendingMatchStatus reports whether status is one of the known statuses.
func IsValidPendingMatchStatus(status string) bool {
	switch status {
	case PendingMatchStatusPending, PendingMatchStatusApproved, PendingMatchStatusRejected:
		return true
	}
	return false
}

// MatchSignals is the score breakdown shown to reviewers.
type MatchSignals struct {
	NameSimilarity   int    `json:"nameSimilarity"`
	CityBoost        int    `json:"cityBoost"`
	AffiliationBoost int    `json:"affiliationBoost"`
	Affiliation      string `json:"affiliation,omitempty"`
}

// PendingMatch is a proposed link between two source gyms awaiting review.
type PendingMatch struct {
	ID             string       `json:"id" db:"id"`
	SourceGym1Key  string       `json:"source_gym1_key" db:"source_gym1_key"`
	SourceGym1Name string       `json:"source_gym1_name" db:"source_gym1_name"`
	SourceGym2Key  string       `json:"source_gym2_key" db:"source_gym2_key"`
	SourceGym2Name string       `json:"source_gym2_name" db:"source_gym2_name"`
	Confidence     int          `json:"confidence" db:"confidence"`
	Signals        MatchSignals `json:"signals" db:"-"`
	Status         string       `json:"status" db:"status"`
	ReviewedBy     *string      `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt     *time.Time   `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// PairKey is the order-independent identity of the gym pair.
func (m *PendingMatch) PairKey() string {
	return PairKey(m.SourceGym1Key, m.SourceGym2Key)
}

// IsPending reports whether the match is still awaiting review.
func (m *PendingMatch) IsPending() bool {
	return m.Status == PendingMatchStatusPending
}

// PairKey joins two source gym keys so that (a, b) and (b, a) produce the same value.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
