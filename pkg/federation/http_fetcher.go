package federation

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

const defaultMaxPages = 1000

// Endpoints are the paths a federation serves its data on, relative to BaseURL.
// GymsPath may use {page} and {page_size}; RosterPath uses {tournament_id} and {gym_id}.
// An empty CountPath or RosterPath means the federation does not offer that operation.
type Endpoints struct {
	BaseURL    string
	GymsPath   string
	CountPath  string
	RosterPath string
	PageSize   int // 0 fetches GymsPath once
	MaxPages   int // 0 means 1000
}

// Expressions are the JMESPath expressions that read each response
type Expressions struct {
	Gyms       string
	GymID      string
	GymName    string
	GymCity    string
	GymCountry string

	TotalCount string

	Roster        string
	AthleteName   string
	AthleteBelt   string
	AthleteAge    string
	AthleteWeight string
}

// FetcherConfig describes one federation's API
type FetcherConfig struct {
	Federation  models.Federation
	Endpoints   Endpoints
	Expressions Expressions
}

// JJWLConfig returns the JJWL API layout. JJWL has no count endpoint.
func JJWLConfig(baseURL string) FetcherConfig {
	return FetcherConfig{
		Federation: models.FederationJJWL,
		Endpoints: Endpoints{
			BaseURL:    baseURL,
			GymsPath:   "/api/gyms",
			RosterPath: "/api/events/{tournament_id}/gyms/{gym_id}/athletes",
		},
		Expressions: Expressions{
			Gyms:          "@",
			GymID:         "id",
			GymName:       "name",
			GymCity:       "city",
			GymCountry:    "country",
			Roster:        "athletes",
			AthleteName:   "name",
			AthleteBelt:   "belt",
			AthleteAge:    "age_division",
			AthleteWeight: "weight_class",
		},
	}
}

// IBJJFConfig returns the IBJJF API layout. IBJJF publishes no rosters.
func IBJJFConfig(baseURL string) FetcherConfig {
	return FetcherConfig{
		Federation: models.FederationIBJJF,
		Endpoints: Endpoints{
			BaseURL:   baseURL,
			GymsPath:  "/api/v1/academies?page={page}&pageSize={page_size}",
			CountPath: "/api/v1/academies?page=1&pageSize=1",
			PageSize:  100,
		},
		Expressions: Expressions{
			Gyms:       "data",
			GymID:      "id",
			GymName:    "name",
			GymCity:    "city",
			GymCountry: "country",
			TotalCount: "totalRecords",
		},
	}
}

// HTTPFetcher reads a federation's JSON API
type HTTPFetcher struct {
	config  FetcherConfig
	client  *Client
	queries queries
	logger  ectologger.Logger
}

// NewHTTPFetcher compiles the config's expressions, failing on the first invalid one
func NewHTTPFetcher(config FetcherConfig, client *Client, logger ectologger.Logger) (*HTTPFetcher, error) {
	q, err := config.Expressions.compile()
	if err != nil {
		return nil, fmt.Errorf("%s fetcher: %w", config.Federation, err)
	}
	config.Endpoints.BaseURL = strings.TrimRight(config.Endpoints.BaseURL, "/")
	return &HTTPFetcher{
		config:  config,
		client:  client,
		queries: q,
		logger:  logger,
	}, nil
}

func (f *HTTPFetcher) Federation() models.Federation {
	return f.config.Federation
}

// FetchAllGyms walks every page of the gym listing. Records without an id or name are dropped and
// repeated ids keep their first occurrence.
func (f *HTTPFetcher) FetchAllGyms(ctx context.Context) ([]models.SourceGym, error) {
	pageSize := f.config.Endpoints.PageSize
	maxPages := f.config.Endpoints.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	gyms := make([]models.SourceGym, 0)
	seen := make(map[string]struct{})
	dropped := 0
	complete := false

	for page := 1; page <= maxPages; page++ {
		data, err := f.get(ctx, f.config.Endpoints.GymsPath, map[string]string{
			"page":      strconv.Itoa(page),
			"page_size": strconv.Itoa(pageSize),
		})
		if err != nil {
			return nil, err
		}

		items, err := f.queries.gyms.list(data)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			gym, err := f.toGym(item)
			if err != nil {
				return nil, err
			}
			if gym.ExternalID == "" || gym.Name == "" {
				dropped++
				continue
			}
			if _, ok := seen[gym.ExternalID]; ok {
				continue
			}
			seen[gym.ExternalID] = struct{}{}
			gyms = append(gyms, gym)
		}

		if pageSize <= 0 || len(items) < pageSize {
			complete = true
			break
		}
	}

	// a truncated listing must not be saved as the whole federation
	if !complete {
		f.logger.WithContext(ctx).WithFields(map[string]any{
			"federation": f.config.Federation,
			"pages":      maxPages,
			"gyms":       len(gyms),
		}).Error("Gym listing did not end within the page limit")
		return nil, fmt.Errorf("%s: %w (%d pages)", f.config.Federation, ErrPageLimit, maxPages)
	}

	f.logger.WithContext(ctx).WithFields(map[string]any{
		"federation": f.config.Federation,
		"gyms":       len(gyms),
		"dropped":    dropped,
	}).Info("Fetched federation gyms")

	return gyms, nil
}

// FetchTotalCount reads the remote gym count
func (f *HTTPFetcher) FetchTotalCount(ctx context.Context) (int, error) {
	if f.config.Endpoints.CountPath == "" {
		return 0, fmt.Errorf("%s total count: %w", f.config.Federation, ErrUnsupported)
	}

	data, err := f.get(ctx, f.config.Endpoints.CountPath, nil)
	if err != nil {
		return 0, err
	}
	return f.queries.totalCount.number(data)
}

// FetchRoster reads the athletes a gym entered at a tournament
func (f *HTTPFetcher) FetchRoster(ctx context.Context, tournamentID, gymExternalID string) ([]models.RosterAthlete, error) {
	if f.config.Endpoints.RosterPath == "" {
		return nil, fmt.Errorf("%s rosters: %w", f.config.Federation, ErrUnsupported)
	}

	data, err := f.get(ctx, f.config.Endpoints.RosterPath, map[string]string{
		"tournament_id": tournamentID,
		"gym_id":        gymExternalID,
	})
	if err != nil {
		return nil, err
	}

	items, err := f.queries.roster.list(data)
	if err != nil {
		return nil, err
	}

	athletes := make([]models.RosterAthlete, 0, len(items))
	for _, item := range items {
		athlete, err := f.toAthlete(item)
		if err != nil {
			return nil, err
		}
		if athlete.Name == "" {
			continue
		}
		athletes = append(athletes, athlete)
	}
	return athletes, nil
}

func (f *HTTPFetcher) get(ctx context.Context, path string, params map[string]string) (any, error) {
	replacements := make([]string, 0, len(params)*2)
	for k, v := range params {
		replacements = append(replacements, "{"+k+"}", url.PathEscape(v))
	}
	path = strings.NewReplacer(replacements...).Replace(path)

	return f.client.GetJSON(ctx, f.config.Federation.String(), f.config.Endpoints.BaseURL+path)
}

func (f *HTTPFetcher) toGym(item any) (models.SourceGym, error) {
	q := f.queries
	gym := models.SourceGym{Federation: f.config.Federation}

	var err error
	if gym.ExternalID, err = q.gymID.text(item); err != nil {
		return gym, err
	}
	if gym.Name, err = q.gymName.text(item); err != nil {
		return gym, err
	}
	if gym.City, err = optional(q.gymCity, item); err != nil {
		return gym, err
	}
	if gym.Country, err = optional(q.gymCountry, item); err != nil {
		return gym, err
	}
	return gym, nil
}

func (f *HTTPFetcher) toAthlete(item any) (models.RosterAthlete, error) {
	q := f.queries
	var athlete models.RosterAthlete

	var err error
	if athlete.Name, err = q.athleteName.text(item); err != nil {
		return athlete, err
	}
	if athlete.Belt, err = q.athleteBelt.text(item); err != nil {
		return athlete, err
	}
	if athlete.AgeDivision, err = q.athleteAge.text(item); err != nil {
		return athlete, err
	}
	if athlete.WeightClass, err = q.athleteWt.text(item); err != nil {
		return athlete, err
	}
	return athlete, nil
}

func optional(q query, item any) (*string, error) {
	v, err := q.text(item)
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}
