package models

import "time"

// Tournament is a federation event inside the roster look-ahead window.
type Tournament struct {
	Federation Federation `json:"federation" db:"federation"`
	ExternalID string     `json:"external_id" db:"external_id"`
	Name       string     `json:"name" db:"name"`
	City       *string    `json:"city,omitempty" db:"city"`
	Country    *string    `json:"country,omitempty" db:"country"`
	StartDate  time.Time  `json:"start_date" db:"start_date"`
	EndDate    time.Time  `json:"end_date" db:"end_date"`
}

// Athlete is a tracked competitor. GymExternalID is a JJWL gym id.
type Athlete struct {
	ID            string  `json:"id" db:"id"`
	Name          string  `json:"name" db:"name"`
	GymExternalID *string `json:"gym_external_id,omitempty" db:"gym_external_id"`
	GymName       *string `json:"gym_name,omitempty" db:"gym_name"`
}

// RosterPair is one unit of roster refresh work.
type RosterPair struct {
	Federation    Federation `json:"federation"`
	TournamentID  string     `json:"tournament_id"`
	GymExternalID string     `json:"gym_external_id"`
	GymName       string     `json:"gym_name,omitempty"`
}

// Key identifies the pair for deduplication.
func (p RosterPair) Key() string {
	return string(p.Federation) + "#" + p.TournamentID + "#" + p.GymExternalID
}

// RosterAthlete is one entry of a gym's roster at a tournament.
type RosterAthlete struct {
	Name        string `json:"name"`
	Belt        string `json:"belt,omitempty"`
	AgeDivision string `json:"age_division,omitempty"`
	WeightClass string `json:"weight_class,omitempty"`
}

// RosterPairResult is the outcome of refreshing a single pair.
type RosterPairResult struct {
	Pair         RosterPair `json:"pair"`
	Success      bool       `json:"success"`
	AthleteCount int        `json:"athleteCount"`
	Error        string     `json:"error,omitempty"`
}

// RosterBatchResult aggregates a roster refresh run.
type RosterBatchResult struct {
	SuccessCount int                `json:"successCount"`
	FailureCount int                `json:"failureCount"`
	Pairs        []RosterPairResult `json:"pairs"`
}
