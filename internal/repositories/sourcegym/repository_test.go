package sourcegym_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/mastergym"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/sourcegym"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/testenv"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestSourceGymRepository(t *testing.T) {
	db := testenv.Postgres(t)
	logger := testenv.Logger()
	repo := sourcegym.NewRepository(db, logger)
	masters := mastergym.NewRepository(db, logger)
	ctx := context.Background()

	t.Run("upsert keeps master link", func(t *testing.T) {
		gym := &models.SourceGym{Federation: models.FederationJJWL, ExternalID: "101", Name: "Pablo Silva BJJ", City: strPtr("Austin")}
		require.NoError(t, repo.Upsert(ctx, gym))

		master, err := masters.Create(ctx, &models.MasterGym{CanonicalName: "Pablo Silva BJJ"})
		require.NoError(t, err)
		require.NoError(t, masters.Link(ctx, gym.Key(), master.ID))

		gym.Name = "Pablo Silva Brazilian Jiu Jitsu"
		require.NoError(t, repo.Upsert(ctx, gym))

		got, err := repo.GetByKey(ctx, "JJWL#101")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Pablo Silva Brazilian Jiu Jitsu", got.Name)
		require.NotNil(t, got.MasterGymID)
		assert.Equal(t, master.ID, *got.MasterGymID)

		linked, err := repo.ListByMasterGym(ctx, master.ID)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, "101", linked[0].ExternalID)

		require.NoError(t, masters.Unlink(ctx, gym.Key()))
		got, err = repo.GetByKey(ctx, "JJWL#101")
		require.NoError(t, err)
		assert.False(t, got.IsLinked())
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		got, err := repo.Get(ctx, models.FederationIBJJF, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("batch upsert dedupes and paginates", func(t *testing.T) {
		gyms := make([]models.SourceGym, 0, 12)
		for i := 0; i < 10; i++ {
			gyms = append(gyms, models.SourceGym{
				Federation: models.FederationIBJJF,
				ExternalID: fmt.Sprintf("b%02d", i),
				Name:       fmt.Sprintf("Academy %d", i),
				Country:    strPtr("US"),
			})
		}
		gyms = append(gyms, models.SourceGym{Federation: models.FederationIBJJF, ExternalID: "b00", Name: "Renamed", Country: strPtr("usa")})
		gyms = append(gyms, models.SourceGym{Federation: models.FederationIBJJF, ExternalID: "br1", Name: "Rio Academy", Country: strPtr("Brazil")})

		saved, err := repo.UpsertBatch(ctx, gyms)
		require.NoError(t, err)
		assert.Equal(t, 11, saved)

		var all []models.SourceGym
		cursor := ""
		for {
			page, err := repo.ListByFederation(ctx, models.FederationIBJJF, cursor, 4)
			require.NoError(t, err)
			all = append(all, page.Items...)
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		assert.Len(t, all, 11)
		assert.Equal(t, "Renamed", all[0].Name)

		us, err := repo.ListUSIBJJFGyms(ctx)
		require.NoError(t, err)
		assert.Len(t, us, 10)
		for _, g := range us {
			assert.NotEqual(t, "br1", g.ExternalID)
		}
	})

	t.Run("sync meta", func(t *testing.T) {
		meta, err := repo.GetSyncMeta(ctx, models.FederationIBJJF)
		require.NoError(t, err)
		assert.Nil(t, meta)

		now := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, repo.UpdateSyncMeta(ctx, &models.GymSyncMeta{
			Federation: models.FederationIBJJF, TotalRecords: 8123, LastSyncAt: now, LastChangeAt: &now,
		}))
		later := now.Add(time.Hour)
		require.NoError(t, repo.UpdateSyncMeta(ctx, &models.GymSyncMeta{
			Federation: models.FederationIBJJF, TotalRecords: 8123, LastSyncAt: later, LastChangeAt: &now,
		}))

		meta, err = repo.GetSyncMeta(ctx, models.FederationIBJJF)
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, 8123, meta.TotalRecords)
		assert.True(t, meta.LastSyncAt.Equal(later))
		require.NotNil(t, meta.LastChangeAt)
		assert.True(t, meta.LastChangeAt.Equal(now))
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := repo.GetByKey(ctx, "nohash")
		assert.Error(t, err)
	})
}
