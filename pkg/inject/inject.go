package inject

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
)

// New creates and registers a dependency container whose own logging goes through logger.
// An empty id creates the default container.
func New(id string, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	loggerConfig := ectoinject.DefaulLoggerConfig
	loggerConfig.EnableColor = false
	loggerConfig.LogFunc = func(ctx context.Context, level, msg string) {
		log := logger.WithContext(ctx).WithField("container", id)
		if level == loglevel.WARN {
			log.Warn(msg)
			return
		}
		log.Debug(msg)
	}

	config := ectoinject.DefaultContainerConfig
	if id != "" {
		config.ID = id
	}
	config.AllowMissingDependencies = false
	config.LoggerConfig = &loggerConfig

	return ectoinject.NewDIContainer(config)
}
