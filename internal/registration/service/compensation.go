package service

import (
	"context"

	"github.com/smallbiznis/complytics/internal/observability/metrics"
	"go.uber.org/zap"
)

const stepRestoreRegistration = "restore_registration"

type undoStep struct {
	name string
	undo func(context.Context) error
}

// compensator records how to reverse each completed provisioning step and
// replays them newest first when a later step fails.
type compensator struct {
	log     *zap.Logger
	metrics *metrics.AuthMetrics
	steps   []undoStep
}

func (c *compensator) push(name string, undo func(context.Context) error) {
	c.steps = append(c.steps, undoStep{name: name, undo: undo})
}

// drop forgets a recorded step without running it.
func (c *compensator) drop(name string) {
	kept := c.steps[:0]
	for _, step := range c.steps {
		if step.name != name {
			kept = append(kept, step)
		}
	}
	c.steps = kept
}

// run ignores cancellation of ctx so a dropped request cannot leave half
// of a provisioning behind.
func (c *compensator) run(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		err := step.undo(ctx)
		c.metrics.IncCompensation(step.name, err == nil)
		if err != nil {
			c.log.Error("compensation failed",
				zap.String("step", step.name),
				zap.NamedError("cause", cause),
				zap.Error(err),
			)
			continue
		}
		c.log.Warn("compensated", zap.String("step", step.name), zap.NamedError("cause", cause))
	}
	c.steps = nil
}
