package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"relay-pipeline/handler"
	appconfig "relay-pipeline/internal/config"
	"relay-pipeline/internal/integrations/objectstore"
	"relay-pipeline/internal/integrations/queue"
	"relay-pipeline/internal/logging"
	"relay-pipeline/internal/usecase"
)

func main() {
	ctx := context.Background()
	logging.Init(false)
	startup := logging.NewStartupLogger("ingest-relay")

	// ---- Configuration (read only here) ----
	cfg, err := appconfig.LoadRelay(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ---- AWS SDK config ----
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	// ---- Clients ----
	store, err := objectstore.New(awss3.NewFromConfig(awsCfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 client")
	}
	publisher, err := queue.New(awssqs.NewFromConfig(awsCfg), cfg.QueueURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create SQS client")
	}

	// ---- Handler ----
	relay, err := usecase.NewRelayService(store, publisher, cfg.DestinationPrefix, cfg.MessageGroupID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create relay service")
	}
	h, err := handler.NewIngestHandler(relay)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create handler")
	}

	startup.
		Resource("queue", cfg.QueueURL).
		Config("destinationPrefix", cfg.DestinationPrefix).
		Config("messageGroupId", cfg.MessageGroupID).
		Log()

	lambda.Start(h.Handle)
}
