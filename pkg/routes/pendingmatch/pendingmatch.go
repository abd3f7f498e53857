package pendingmatch

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appctx "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/context"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/review"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes"
)

// Reviewer is the review service behind the admin endpoints
type Reviewer interface {
	ListPendingMatches(ctx context.Context, status string) ([]models.PendingMatch, error)
	Approve(ctx context.Context, id, reviewerID string) (*review.Result, error)
	Reject(ctx context.Context, id, reviewerID string) (*review.Result, error)
}

// ReviewRequest is the approve/reject body. ReviewerID falls back to the X-User-ID header.
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

// Register registers pending match routes
func Register(g *echo.Group) {
	g.GET("", ListPendingMatches)
	g.POST("/:id/approve", ApprovePendingMatch)
	g.POST("/:id/reject", RejectPendingMatch)
}

// ListPendingMatches lists matches by status, pending by default
func ListPendingMatches(c echo.Context) error {
	ctx, reviewer, err := ectoinject.GetContext[Reviewer](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	matches, err := reviewer.ListPendingMatches(ctx, c.QueryParam("status"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, matches)
}

// ApprovePendingMatch links both gyms of the match
func ApprovePendingMatch(c echo.Context) error {
	reviewerID, err := reviewerFrom(c)
	if err != nil {
		return err
	}

	ctx, reviewer, err := ectoinject.GetContext[Reviewer](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := reviewer.Approve(ctx, c.Param("id"), reviewerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// RejectPendingMatch closes the match without linking
func RejectPendingMatch(c echo.Context) error {
	reviewerID, err := reviewerFrom(c)
	if err != nil {
		return err
	}

	ctx, reviewer, err := ectoinject.GetContext[Reviewer](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := reviewer.Reject(ctx, c.Param("id"), reviewerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func reviewerFrom(c echo.Context) (string, error) {
	var req ReviewRequest
	if err := routes.Bind(c, &req); err != nil {
		return "", err
	}
	if req.ReviewerID == "" {
		req.ReviewerID = appctx.GetUserID(c.Request().Context())
	}
	if err := routes.Validate(&req); err != nil {
		return "", err
	}
	return req.ReviewerID, nil
}
