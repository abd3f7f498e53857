package sourcegym

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes"
)

// GymReader is the read side of the source gym store
type GymReader interface {
	GetByKey(ctx context.Context, key string) (*models.SourceGym, error)
	ListByFederation(ctx context.Context, federation models.Federation, cursor string, limit int) (models.Page[models.SourceGym], error)
}

// Unlinker detaches a source gym from its master gym
type Unlinker interface {
	Unlink(ctx context.Context, sourceGymKey string) (*models.SourceGym, error)
}

// Register registers source gym routes. Keys are "<FEDERATION>#<external id>" with the '#' escaped as %23.
func Register(g *echo.Group) {
	g.GET("", ListSourceGyms)
	g.GET("/:key", GetSourceGym)
	g.POST("/:key/unlink", UnlinkSourceGym)
}

// ListSourceGyms pages through one federation's gyms
func ListSourceGyms(c echo.Context) error {
	federation, err := models.ParseFederation(c.QueryParam("federation"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	limit, err := routes.QueryInt(c, "limit", 0)
	if err != nil {
		return err
	}

	ctx, gyms, err := ectoinject.GetContext[GymReader](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	page, err := gyms.ListByFederation(ctx, federation, c.QueryParam("cursor"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func GetSourceGym(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}

	ctx, gyms, err := ectoinject.GetContext[GymReader](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	gym, err := gyms.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if gym == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "source gym %s not found", key)
	}
	return c.JSON(http.StatusOK, gym)
}

// UnlinkSourceGym clears the gym's master link
func UnlinkSourceGym(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}

	ctx, unlinker, err := ectoinject.GetContext[Unlinker](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	gym, err := unlinker.Unlink(ctx, key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gym)
}

func keyParam(c echo.Context) (string, error) {
	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "invalid source gym key")
	}
	return key, nil
}
