package models

import (
	"fmt"
	"strings"
	"time"
)

// Federation identifies a tournament-organizing body.
type Federation string

const (
	FederationJJWL  Federation = "JJWL"
	FederationIBJJF Federation = "IBJJF"
)

// ParseFederation accepts either federation name in any case.
func ParseFederation(s string) (Federation, error) {
	switch Federation(strings.ToUpper(strings.TrimSpace(s))) {
	case FederationJJWL:
		return FederationJJWL, nil
	case FederationIBJJF:
		return FederationIBJJF, nil
	default:
		return "", fmt.Errorf("unknown federation %q", s)
	}
}

func (f Federation) String() string {
	return string(f)
}

// SourceGymKey builds the federation-qualified id of a source gym.
func SourceGymKey(federation Federation, externalID string) string {
	return string(federation) + "#" + externalID
}

// ParseSourceGymKey splits a key produced by SourceGymKey.
func ParseSourceGymKey(key string) (Federation, string, error) {
	fed, id, ok := strings.Cut(key, "#")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid source gym key %q", key)
	}
	federation, err := ParseFederation(fed)
	if err != nil {
		return "", "", err
	}
	return federation, id, nil
}

// SourceGym is one gym record as known to a single federation.
type SourceGym struct {
	Federation  Federation `json:"federation" db:"federation"`
	ExternalID  string     `json:"external_id" db:"external_id"`
	Name        string     `json:"name" db:"name"`
	City        *string    `json:"city,omitempty" db:"city"`
	Country     *string    `json:"country,omitempty" db:"country"`
	MasterGymID *string    `json:"master_gym_id,omitempty" db:"master_gym_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Key returns the federation-qualified id.
func (g *SourceGym) Key() string {
	return SourceGymKey(g.Federation, g.ExternalID)
}

// IsLinked reports whether the gym already belongs to a master gym.
func (g *SourceGym) IsLinked() bool {
	return g.MasterGymID != nil && *g.MasterGymID != ""
}

// CityValue returns the city or "" when unknown.
func (g *SourceGym) CityValue() string {
	if g.City == nil {
		return ""
	}
	return *g.City
}

// MasterGym is a canonical, federation-independent gym identity.
type MasterGym struct {
	ID            string    `json:"id" db:"id"`
	CanonicalName string    `json:"canonical_name" db:"canonical_name"`
	City          *string   `json:"city,omitempty" db:"city"`
	Country       *string   `json:"country,omitempty" db:"country"`
	Address       *string   `json:"address,omitempty" db:"address"`
	Website       *string   `json:"website,omitempty" db:"website"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// GymSyncMeta is the per-federation change-detection record.
type GymSyncMeta struct {
	Federation   Federation `json:"federation" db:"federation"`
	TotalRecords int        `json:"total_records" db:"total_records"`
	LastSyncAt   time.Time  `json:"last_sync_at" db:"last_sync_at"`
	LastChangeAt *time.Time `json:"last_change_at,omitempty" db:"last_change_at"`
}

// Page is one page of a cursor-paginated listing. An empty NextCursor means the listing is exhausted.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
