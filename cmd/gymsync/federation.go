package main

import (
	"fmt"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/config"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/federation"
)

// fetcherConfig applies configured endpoint and expression overrides to a built-in layout
func fetcherConfig(base federation.FetcherConfig, ep config.EndpointConfig) (federation.FetcherConfig, error) {
	if ep.BaseURL != "" {
		base.Endpoints.BaseURL = ep.BaseURL
	}
	if ep.GymsPath != "" {
		base.Endpoints.GymsPath = ep.GymsPath
	}
	if ep.CountPath != "" {
		base.Endpoints.CountPath = ep.CountPath
	}
	if ep.RosterPath != "" {
		base.Endpoints.RosterPath = ep.RosterPath
	}
	if ep.PageSize > 0 {
		base.Endpoints.PageSize = ep.PageSize
	}
	if ep.MaxPages > 0 {
		base.Endpoints.MaxPages = ep.MaxPages
	}

	fields := map[string]*string{
		"gyms":           &base.Expressions.Gyms,
		"gym_id":         &base.Expressions.GymID,
		"gym_name":       &base.Expressions.GymName,
		"gym_city":       &base.Expressions.GymCity,
		"gym_country":    &base.Expressions.GymCountry,
		"total_count":    &base.Expressions.TotalCount,
		"roster":         &base.Expressions.Roster,
		"athlete_name":   &base.Expressions.AthleteName,
		"athlete_belt":   &base.Expressions.AthleteBelt,
		"athlete_age":    &base.Expressions.AthleteAge,
		"athlete_weight": &base.Expressions.AthleteWeight,
	}
	for name, expr := range ep.Expressions {
		field, ok := fields[name]
		if !ok {
			return base, fmt.Errorf("%s: unknown expression %q", base.Federation, name)
		}
		*field = expr
	}
	return base, nil
}
