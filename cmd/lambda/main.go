package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/berniyo/paycollect/internal/app"
	"github.com/berniyo/paycollect/internal/collection"
	"github.com/berniyo/paycollect/internal/config"
	"github.com/berniyo/paycollect/internal/lambdahttp"
	"github.com/berniyo/paycollect/internal/logging"
)

func main() {
	logging.Init(config.AppName)

	cfg, err := config.Load()
	if err != nil {
		logging.Logger.WithError(err).Fatal("invalid configuration")
	}

	// The execution environment is frozen once a response is returned, so the
	// payment email has to go out inside the invocation.
	application, err := app.NewApp(cfg, collection.WithSyncDelivery())
	if err != nil {
		logging.Logger.WithError(err).Fatal("failed to initialize app")
	}

	go application.RunSweeper(context.Background())

	lambda.Start(lambdahttp.Handler(application.Router()))
}
