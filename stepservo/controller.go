// Package stepservo implements a non-blocking servo controller that walks a servo toward
// a target pulse width one step per update interval.
package stepservo

/*
	The controller never sleeps. Callers invoke Update as often as they like and a step is
	only applied once more than the update interval has elapsed since the previous one, so a
	single goroutine can service many servos.
*/

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// DefaultUpdateInterval is the minimum time between two steps, in microseconds.
const DefaultUpdateInterval = 2500

// Actuator is the hardware output a Controller drives.
type Actuator interface {
	// Bind claims the output on the given pin.
	Bind(ctx context.Context, pin string) error
	// Release gives the output back. The servo is no longer driven afterwards.
	Release(ctx context.Context) error
	// CommandPosition drives the servo to the given pulse width in microseconds.
	CommandPosition(ctx context.Context, us int) error
}

// Controller owns one servo's travel bounds and motion state.
type Controller struct {
	actuator Actuator
	pin      string

	minPos, homePos, maxPos int
	stepSize                int
	updateInterval          int64 // microseconds

	currentPos int
	targetPos  int
	dir        Direction
	atTarget   bool
	attached   bool
	lastUpdate int64 // microseconds since start

	clk      clock.Clock
	start    time.Time
	rnd      RandSource
	seedRand bool
	logger   logging.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithUpdateInterval overrides DefaultUpdateInterval. Values are microseconds.
func WithUpdateInterval(us int64) Option {
	return func(c *Controller) {
		c.updateInterval = us
	}
}

// WithClock sets the time source. Tests pass a clock.Mock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clk = clk
	}
}

// WithRandSource sets the source used by MoveToRandom. An injected source is never reseeded.
func WithRandSource(rnd RandSource) Option {
	return func(c *Controller) {
		c.rnd = rnd
		c.seedRand = false
	}
}

// WithLogger sets a logger for lifecycle events.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController returns a controller for the servo on pin. No hardware is touched until Attach.
// Bounds are not validated: minPos <= homePos <= maxPos and stepSize > 0 are the caller's job.
func NewController(actuator Actuator, pin string, minPos, homePos, maxPos, stepSize int, opts ...Option) *Controller {
	c := &Controller{
		actuator:       actuator,
		pin:            pin,
		minPos:         minPos,
		homePos:        homePos,
		maxPos:         maxPos,
		stepSize:       stepSize,
		updateInterval: DefaultUpdateInterval,
		currentPos:     homePos,
		targetPos:      homePos,
		dir:            Forward,
		clk:            clock.New(),
		seedRand:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = NewRandSource(0)
	}
	c.start = c.clk.Now()
	return c
}

// micros returns microseconds elapsed since the controller was built.
func (c *Controller) micros() int64 {
	return c.clk.Since(c.start).Microseconds()
}

// Attach binds the actuator and parks the motion state at home.
func (c *Controller) Attach(ctx context.Context) error {
	if err := c.actuator.Bind(ctx, c.pin); err != nil {
		return errors.Wrapf(err, "failed to attach servo on pin %s", c.pin)
	}
	c.attached = true
	c.atTarget = true
	c.currentPos = c.homePos
	c.targetPos = c.homePos
	c.dir = Forward

	if c.seedRand {
		c.rnd.Seed(uint64(c.clk.Now().UnixNano()))
	}
	if c.logger != nil {
		c.logger.Debugw("servo attached", "pin", c.pin, "home_us", c.homePos)
	}
	return nil
}

// Detach releases the actuator. Calling it on a detached controller is a no-op.
func (c *Controller) Detach(ctx context.Context) error {
	c.atTarget = false
	if !c.attached {
		return nil
	}
	if err := c.actuator.Release(ctx); err != nil {
		return errors.Wrapf(err, "failed to detach servo on pin %s", c.pin)
	}
	c.attached = false
	if c.logger != nil {
		c.logger.Debugw("servo detached", "pin", c.pin, "position_us", c.currentPos)
	}
	return nil
}

// AtTarget reports whether the last Update found the servo at its target.
func (c *Controller) AtTarget() bool {
	return c.atTarget
}

// MoveToHome retargets the servo to its home position.
func (c *Controller) MoveToHome() {
	c.retarget(c.homePos)
}

// MoveToMin retargets the servo to its minimum position.
func (c *Controller) MoveToMin() {
	c.retarget(c.minPos)
}

// MoveToMax retargets the servo to its maximum position.
func (c *Controller) MoveToMax() {
	c.retarget(c.maxPos)
}

// MoveToRandom retargets the servo to a uniformly drawn position in [min, max].
func (c *Controller) MoveToRandom() {
	c.retarget(c.rnd.IntRange(c.minPos, c.maxPos))
}

// MoveTo retargets the servo to pos, clamped to the configured bounds.
func (c *Controller) MoveTo(pos int) {
	c.retarget(clamp(pos, c.minPos, c.maxPos))
}

// Halt makes the current position the target, ending any move in progress.
func (c *Controller) Halt() {
	c.retarget(c.currentPos)
}

func (c *Controller) retarget(pos int) {
	c.targetPos = pos
	c.dir = directionTo(c.currentPos, pos)
	c.atTarget = false
}

// Update advances the servo by at most one step. It returns immediately when the servo is at its
// target, detached, or when the update interval has not yet passed. A detached controller is
// left untouched, so AtTarget stays false until the next Attach.
func (c *Controller) Update(ctx context.Context) error {
	if !c.attached {
		return nil
	}
	if c.currentPos == c.targetPos {
		if !c.atTarget && c.logger != nil {
			c.logger.Debugw("servo reached target", "pin", c.pin, "position_us", c.currentPos)
		}
		c.atTarget = true
		return nil
	}

	now := c.micros()
	if now-c.lastUpdate <= c.updateInterval {
		return nil
	}

	next := c.currentPos + c.dir.Sign()*c.stepSize
	// no overtravel
	if (next-c.targetPos)*c.dir.Sign() > 0 {
		next = c.targetPos
	}

	if err := c.actuator.CommandPosition(ctx, next); err != nil {
		return errors.Wrapf(err, "servo on pin %s failed to move to %dus", c.pin, next)
	}
	c.currentPos = next
	c.lastUpdate = now
	return nil
}

// Position returns the last commanded pulse width in microseconds.
func (c *Controller) Position() int {
	return c.currentPos
}

// Target returns the pulse width being moved toward.
func (c *Controller) Target() int {
	return c.targetPos
}

// Direction returns the direction of the current move.
func (c *Controller) Direction() Direction {
	return c.dir
}

// Attached reports whether the actuator is bound.
func (c *Controller) Attached() bool {
	return c.attached
}

// Bounds returns the configured min, home and max pulse widths.
func (c *Controller) Bounds() (minPos, homePos, maxPos int) {
	return c.minPos, c.homePos, c.maxPos
}

// Pin returns the pin the controller drives.
func (c *Controller) Pin() string {
	return c.pin
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
