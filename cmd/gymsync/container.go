package main

import (
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	pkgerrors "github.com/pkg/errors"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/inject"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/review"
	pendingroutes "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes/pendingmatch"
	sourcegymroutes "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes/sourcegym"
)

const containerID = "gymsync"

// newContainer registers what the admin routes resolve per request
func newContainer(logger ectologger.Logger, reviewer *review.Service, gyms sourcegymroutes.GymReader) error {
	container, err := inject.New(containerID, logger)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create dependency container")
	}

	registrations := []func() error{
		func() error { return ectoinject.RegisterInstance[pendingroutes.Reviewer](container, reviewer) },
		func() error { return ectoinject.RegisterInstance[sourcegymroutes.GymReader](container, gyms) },
		func() error { return ectoinject.RegisterInstance[sourcegymroutes.Unlinker](container, reviewer) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return pkgerrors.Wrap(err, "failed to register dependency")
		}
	}
	return nil
}
