package wheatley

/*
	The step servo never jumps to a position. Each request only retargets the controller and a
	background poller walks the pulse width there one step per update interval. Move blocks until
	the servo arrives, DoCommand does not.
*/

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/operation"
	"go.viam.com/rdk/resource"

	"wheatley-servo/stepservo"
	wheatleyutils "wheatley-servo/utils"
)

// Model is the model for a wheatley step servo.
var Model = wheatleyutils.WheatleyFamily.WithModel("step-servo")

// DoCommand verbs.
const (
	commandKey     = "command"
	commandHome    = "home"
	commandMin     = "min"
	commandMax     = "max"
	commandRandom  = "random"
	commandAttach  = "attach"
	commandDetach  = "detach"
	commandStatus  = "status"
	commandMoveKey = "position_us"
)

func init() {
	resource.RegisterComponent(
		servo.API,
		Model,
		resource.Registration[servo.Servo, *ServoConfig]{
			Constructor: newStepServo,
		},
	)
}

// stepServo implements a servo.Servo on top of a stepservo.Controller.
type stepServo struct {
	resource.Named
	resource.AlwaysRebuild
	logger logging.Logger

	conf  ServoConfig
	opMgr *operation.SingleOperationManager

	mu     sync.Mutex // guards ctrl, shared with the poller
	ctrl   *stepservo.Controller
	act    *pwmActuator
	poller *stepservo.Poller
}

var _ = servo.Servo(&stepServo{})

func newStepServo(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (servo.Servo, error) {
	return newServo(ctx, deps, conf, logger, clock.New(), false)
}

// newServo builds the servo. In testingMode the update loop is not started and callers tick
// the poller themselves.
func newServo(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
	clk clock.Clock,
	testingMode bool,
) (*stepServo, error) {
	newConf, err := parseConfig(conf)
	if err != nil {
		return nil, err
	}
	if _, _, err := newConf.Validate(conf.Name); err != nil {
		return nil, err
	}
	cfg := newConf.withDefaults()

	b, err := board.FromDependencies(deps, cfg.BoardName)
	if err != nil {
		return nil, errors.Wrap(err, "board doesn't exist")
	}
	pin, err := b.GPIOPinByName(cfg.Pin)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get servo pin")
	}

	act := newPWMActuator(pin, cfg.FrequencyHz)
	s := &stepServo{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		conf:   cfg,
		opMgr:  operation.NewSingleOperationManager(),
		act:    act,
		ctrl: stepservo.NewController(
			act,
			cfg.Pin,
			cfg.MinUS, cfg.HomeUS, cfg.MaxUS, cfg.StepUS,
			stepservo.WithUpdateInterval(int64(cfg.UpdateIntervalUS)),
			stepservo.WithClock(clk),
			stepservo.WithLogger(logger),
		),
		poller: stepservo.NewPoller(time.Duration(cfg.PollIntervalUS)*time.Microsecond, logger),
	}

	if !cfg.StartDetached {
		if err := s.attach(ctx); err != nil {
			return nil, err
		}
	}

	s.poller.Add(s)
	if !testingMode {
		s.poller.Start()
	}
	return s, nil
}

// parseConfig parses the provided configuration into a ServoConfig.
func parseConfig(conf resource.Config) (*ServoConfig, error) {
	newConf, err := resource.NativeConfig[*ServoConfig](conf)
	if err != nil {
		return nil, err
	}
	return newConf, nil
}

// attach binds the pin and parks the servo at home. An attached servo is left alone so it
// does not jump. Callers must not hold mu.
func (s *stepServo) attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl.Attached() {
		return nil
	}
	if err := s.ctrl.Attach(ctx); err != nil {
		return err
	}
	_, home, _ := s.ctrl.Bounds()
	return s.park(ctx, home)
}

// park drives the pin straight to the given pulse width. Only used right after attach, when
// the controller already believes it is there.
func (s *stepServo) park(ctx context.Context, us int) error {
	if err := s.act.CommandPosition(ctx, us); err != nil {
		return errors.Wrap(err, "couldn't move servo to home position")
	}
	return nil
}

// Update advances the controller by at most one step. The poller is its only caller.
func (s *stepServo) Update(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Update(ctx)
}

// Move moves the servo to the given angle (0 to max_rotation_deg degrees).
// This will block until done or a new operation cancels this one.
func (s *stepServo) Move(ctx context.Context, angleDeg uint32, extra map[string]interface{}) error {
	ctx, done := s.opMgr.New(ctx)
	defer done()

	angle := int(angleDeg)
	if angle > s.conf.MaxRotation {
		angle = s.conf.MaxRotation
	}
	pulseWidth := wheatleyutils.AngleToPulseWidth(angle, s.conf.MaxRotation, s.conf.MinUS, s.conf.MaxUS)

	s.mu.Lock()
	if !s.ctrl.Attached() {
		s.mu.Unlock()
		return errors.Errorf("servo on pin %s is detached", s.conf.Pin)
	}
	s.ctrl.MoveTo(pulseWidth)
	s.mu.Unlock()

	return s.waitForTarget(ctx)
}

// waitForTarget polls until the controller reports arrival.
func (s *stepServo) waitForTarget(ctx context.Context) error {
	wait := time.Duration(s.conf.PollIntervalUS) * time.Microsecond
	for {
		s.mu.Lock()
		atTarget, attached := s.ctrl.AtTarget(), s.ctrl.Attached()
		s.mu.Unlock()
		if atTarget {
			return nil
		}
		if !attached {
			return errors.Errorf("servo on pin %s was detached while moving", s.conf.Pin)
		}
		if !utils.SelectContextOrWait(ctx, wait) {
			return errors.Wrap(ctx.Err(), "servo move interrupted")
		}
	}
}

// Position returns the current angle (degrees) of the servo.
func (s *stepServo) Position(ctx context.Context, extra map[string]interface{}) (uint32, error) {
	s.mu.Lock()
	pos := s.ctrl.Position()
	s.mu.Unlock()
	return uint32(wheatleyutils.PulseWidthToAngle(pos, s.conf.MaxRotation, s.conf.MinUS, s.conf.MaxUS)), nil
}

// Stop ends any move in progress, holding the servo where it is.
func (s *stepServo) Stop(ctx context.Context, extra map[string]interface{}) error {
	_, done := s.opMgr.New(ctx)
	defer done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Halt()
	return nil
}

// IsMoving returns whether the servo is driven and still on its way to a target.
func (s *stepServo) IsMoving(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Attached() && !s.ctrl.AtTarget(), nil
}

// DoCommand retargets or (de)attaches the servo without waiting for it to move.
func (s *stepServo) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if raw, ok := cmd[commandMoveKey]; ok {
		us, ok := raw.(float64)
		if !ok {
			return nil, errors.Errorf("%s must be a number, got %T", commandMoveKey, raw)
		}
		if math.IsNaN(us) || math.IsInf(us, 0) {
			return nil, errors.Errorf("%s must be finite, got %v", commandMoveKey, us)
		}
		// clamp before converting, out of range floats have no defined int value
		us = math.Max(float64(s.conf.MinUS), math.Min(float64(s.conf.MaxUS), us))
		s.opMgr.CancelRunning(ctx)
		s.mu.Lock()
		s.ctrl.MoveTo(int(us))
		s.mu.Unlock()
		return s.status(), nil
	}

	verb, ok := cmd[commandKey].(string)
	if !ok {
		return nil, errors.Errorf("missing %q string in command", commandKey)
	}

	switch verb {
	case commandHome, commandMin, commandMax, commandRandom:
		s.opMgr.CancelRunning(ctx)
		s.mu.Lock()
		switch verb {
		case commandHome:
			s.ctrl.MoveToHome()
		case commandMin:
			s.ctrl.MoveToMin()
		case commandMax:
			s.ctrl.MoveToMax()
		default:
			s.ctrl.MoveToRandom()
		}
		s.mu.Unlock()
	case commandAttach:
		if err := s.attach(ctx); err != nil {
			return nil, err
		}
	case commandDetach:
		s.opMgr.CancelRunning(ctx)
		s.mu.Lock()
		err := s.ctrl.Detach(ctx)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
	case commandStatus:
	default:
		return nil, errors.Errorf("unknown command %q", verb)
	}
	return s.status(), nil
}

func (s *stepServo) status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"position_us": s.ctrl.Position(),
		"target_us":   s.ctrl.Target(),
		"at_target":   s.ctrl.AtTarget(),
		"attached":    s.ctrl.Attached(),
		"direction":   s.ctrl.Direction().String(),
	}
}

// Close stops the update loop and releases the pin.
func (s *stepServo) Close(ctx context.Context) error {
	s.opMgr.CancelRunning(ctx)
	s.poller.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Detach(ctx)
}
