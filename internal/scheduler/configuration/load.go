package configuration

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Load decodes a SchedulerConfig from the init blob handed over by the simulator.
// The blob is a JSON document; an empty blob yields the defaults.
func Load(data []byte) (SchedulerConfig, error) {
	config := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return config, nil
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return config, errors.Wrap(err, "failed to parse scheduler configuration")
	}
	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal scheduler configuration")
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
