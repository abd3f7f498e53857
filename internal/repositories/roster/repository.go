package roster

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

const table = "tournament_gym_rosters"

// Roster is the stored roster of one gym at one tournament
type Roster struct {
	Federation    models.Federation                      `db:"federation" json:"federation"`
	TournamentID  string                                 `db:"tournament_id" json:"tournament_id"`
	GymExternalID string                                 `db:"gym_external_id" json:"gym_external_id"`
	GymName       *string                                `db:"gym_name" json:"gym_name,omitempty"`
	Athletes      database.JSONB[[]models.RosterAthlete] `db:"athletes" json:"athletes"`
	AthleteCount  int                                    `db:"athlete_count" json:"athlete_count"`
	FetchedAt     time.Time                              `db:"fetched_at" json:"fetched_at"`
}

// Repository stores the latest fetched roster per tournament and gym
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new roster repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// SaveRoster replaces the stored roster for the pair
func (r *Repository) SaveRoster(ctx context.Context, pair models.RosterPair, athletes []models.RosterAthlete) error {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.SaveRoster")
	defer span.End()

	if athletes == nil {
		athletes = []models.RosterAthlete{}
	}
	var gymName *string
	if pair.GymName != "" {
		gymName = &pair.GymName
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("federation", "tournament_id", "gym_external_id", "gym_name", "athletes", "athlete_count", "fetched_at")
	ib.Values(pair.Federation, pair.TournamentID, pair.GymExternalID, gymName, database.NewJSONB(athletes), len(athletes), time.Now().UTC())
	ub := ib.OnConflict("federation", "tournament_id", "gym_external_id")
	ub.Set(
		ub.Assign("gym_name", database.Excluded("gym_name")),
		ub.Assign("athletes", database.Excluded("athletes")),
		ub.Assign("athlete_count", database.Excluded("athlete_count")),
		ub.Assign("fetched_at", database.Excluded("fetched_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("pair", pair.Key()).Error("Failed to save roster")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save roster")
	}
	return nil
}

// Get returns nil, nil when no roster was stored for the pair
func (r *Repository) Get(ctx context.Context, federation models.Federation, tournamentID, gymExternalID string) (*Roster, error) {
	ctx, span := tracing.StartSpan(ctx, "roster.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("federation", "tournament_id", "gym_external_id", "gym_name", "athletes", "athlete_count", "fetched_at")
	sb.From(table)
	sb.Where(
		sb.Equal("federation", federation),
		sb.Equal("tournament_id", tournamentID),
		sb.Equal("gym_external_id", gymExternalID),
	)

	query, args := sb.Build()
	var roster Roster
	if err := r.db.GetContext(ctx, &roster, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get roster")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get roster")
	}
	return &roster, nil
}
