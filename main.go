package main

import (
	"context"

	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"
	"go.viam.com/utils"

	"wheatley-servo/wheatley"
)

func main() {
	utils.ContextualMain(mainWithArgs, module.NewLoggerFromArgs("wheatley-servo"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	module, err := module.NewModuleFromArgs(ctx)
	if err != nil {
		return err
	}

	err = module.AddModelFromRegistry(ctx, servo.API, wheatley.Model)
	if err != nil {
		return err
	}
	logger.Debugw("registered model", "api", servo.API, "model", wheatley.Model)

	err = module.Start(ctx)
	defer module.Close(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
