// Package wheatley implements a stepping servo on any board GPIO pin with PWM support.
package wheatley

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/resource"

	"wheatley-servo/stepservo"
	wheatleyutils "wheatley-servo/utils"
)

// ServoConfig is the config for a wheatley step servo. Positions are pulse widths in microseconds.
type ServoConfig struct {
	BoardName string `json:"board"`
	Pin       string `json:"pin"`

	MinUS            int  `json:"min_us,omitempty"`             // defaults to 1000
	HomeUS           int  `json:"home_us,omitempty"`            // defaults to 1500, where the servo parks on attach
	MaxUS            int  `json:"max_us,omitempty"`             // defaults to 2000
	StepUS           int  `json:"step_us,omitempty"`            // pulse width change per step, defaults to 10
	UpdateIntervalUS int  `json:"update_interval_us,omitempty"` // minimum time between steps, defaults to 2500
	PollIntervalUS   int  `json:"poll_interval_us,omitempty"`   // how often the update loop runs, defaults to 500
	FrequencyHz      uint `json:"frequency_hz,omitempty"`       // PWM frequency, defaults to 50
	MaxRotation      int  `json:"max_rotation_deg,omitempty"`   // angle reached at max_us, defaults to 180
	StartDetached    bool `json:"start_detached,omitempty"`     // leave the pin undriven until an attach command
}

// Validate ensures all parts of the config are valid.
func (config *ServoConfig) Validate(path string) ([]string, []string, error) {
	if config.BoardName == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "board")
	}
	if config.Pin == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "pin")
	}
	conf := config.withDefaults()
	if conf.MinUS > conf.HomeUS || conf.HomeUS > conf.MaxUS {
		return nil, nil, resource.NewConfigValidationError(path,
			errors.Errorf("need min_us <= home_us <= max_us, have %d, %d, %d", conf.MinUS, conf.HomeUS, conf.MaxUS))
	}
	if conf.StepUS < 0 || conf.UpdateIntervalUS < 0 || conf.PollIntervalUS < 0 || conf.MaxRotation < 0 {
		return nil, nil, resource.NewConfigValidationError(path, errors.New("step, interval and rotation values cannot be negative"))
	}
	if conf.PollIntervalUS >= conf.UpdateIntervalUS {
		return nil, nil, resource.NewConfigValidationError(path,
			errors.Errorf("poll_interval_us (%d) must be lower than update_interval_us (%d)", conf.PollIntervalUS, conf.UpdateIntervalUS))
	}
	if periodUS := int(1e6 / conf.FrequencyHz); conf.MaxUS >= periodUS {
		return nil, nil, resource.NewConfigValidationError(path,
			errors.Errorf("max_us (%d) does not fit in a %dHz PWM period", conf.MaxUS, conf.FrequencyHz))
	}
	return []string{config.BoardName}, nil, nil
}

// withDefaults returns a copy of the config with unset fields filled in.
func (config *ServoConfig) withDefaults() ServoConfig {
	conf := *config
	if conf.MinUS == 0 {
		conf.MinUS = wheatleyutils.DefaultMinUS
	}
	if conf.HomeUS == 0 {
		conf.HomeUS = wheatleyutils.DefaultHomeUS
	}
	if conf.MaxUS == 0 {
		conf.MaxUS = wheatleyutils.DefaultMaxUS
	}
	if conf.StepUS == 0 {
		conf.StepUS = wheatleyutils.DefaultStepUS
	}
	if conf.UpdateIntervalUS == 0 {
		conf.UpdateIntervalUS = stepservo.DefaultUpdateInterval
	}
	if conf.PollIntervalUS == 0 {
		conf.PollIntervalUS = int(stepservo.DefaultPollPeriod.Microseconds())
	}
	if conf.FrequencyHz == 0 {
		conf.FrequencyHz = wheatleyutils.DefaultFreqHz
	}
	if conf.MaxRotation == 0 {
		conf.MaxRotation = wheatleyutils.DefaultRotation
	}
	return conf
}
