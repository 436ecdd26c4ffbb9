package wheatley

/*
	pwmActuator drives a hobby servo from a board GPIO pin. Pulse widths are turned into duty
	cycles for the configured PWM frequency.
*/

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"

	wheatleyutils "wheatley-servo/utils"
)

type pwmActuator struct {
	pin     board.GPIOPin
	pinName string
	freqHz  uint
}

func newPWMActuator(pin board.GPIOPin, freqHz uint) *pwmActuator {
	return &pwmActuator{pin: pin, freqHz: freqHz}
}

// Bind sets the pin's PWM frequency so that pulse widths map onto the duty cycle.
func (a *pwmActuator) Bind(ctx context.Context, pin string) error {
	a.pinName = pin
	if err := a.pin.SetPWMFreq(ctx, a.freqHz, nil); err != nil {
		return errors.Wrapf(err, "error setting pwm frequency on pin %s", pin)
	}
	return nil
}

// Release stops sending pulses, which lets the servo go limp.
func (a *pwmActuator) Release(ctx context.Context) error {
	if err := a.pin.SetPWM(ctx, 0, nil); err != nil {
		return errors.Wrapf(err, "couldn't stop pulses on pin %s", a.pinName)
	}
	return nil
}

func (a *pwmActuator) CommandPosition(ctx context.Context, us int) error {
	pct := wheatleyutils.PulseWidthToDutyCycle(us, a.freqHz)
	if err := a.pin.SetPWM(ctx, pct, nil); err != nil {
		return errors.Wrapf(err, "couldn't set pulse width %dus on pin %s", us, a.pinName)
	}
	return nil
}
