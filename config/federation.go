package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var envKeys = strings.NewReplacer(".", "_")

// Federations overrides the built-in federation API layouts
type Federations struct {
	JJWL  EndpointConfig `mapstructure:"jjwl"`
	IBJJF EndpointConfig `mapstructure:"ibjjf"`
}

// EndpointConfig overrides one federation's API layout. Empty fields keep the built-in layout.
type EndpointConfig struct {
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	GymsPath   string `mapstructure:"gyms_path"`
	CountPath  string `mapstructure:"count_path"`
	RosterPath string `mapstructure:"roster_path"`
	PageSize   int    `mapstructure:"page_size" validate:"min=0"`
	MaxPages   int    `mapstructure:"max_pages" validate:"min=0"`

	// Expressions maps a field (gyms, gym_id, gym_name, ...) to a JMESPath expression
	Expressions map[string]string `mapstructure:"expressions"`
}

// LoadFederations reads layout overrides from a YAML or JSON file. An empty path means no overrides.
// Values in the file can be replaced through the environment with a GYMSYNC_ prefix, e.g.
// GYMSYNC_IBJJF_PAGE_SIZE.
func LoadFederations(path string) (*Federations, error) {
	var feds Federations
	if path == "" {
		return &feds, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("gymsync")
	v.SetEnvKeyReplacer(envKeys)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read federation config: %w", err)
	}
	if err := v.Unmarshal(&feds); err != nil {
		return nil, fmt.Errorf("decode federation config: %w", err)
	}
	if err := validator.New().Struct(&feds); err != nil {
		return nil, fmt.Errorf("invalid federation config: %w", err)
	}
	return &feds, nil
}
