package main

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"relay-pipeline/handler"
	appconfig "relay-pipeline/internal/config"
	"relay-pipeline/internal/integrations/orchestrator"
	"relay-pipeline/internal/integrations/paramstore"
	"relay-pipeline/internal/logging"
	"relay-pipeline/internal/repository"
	"relay-pipeline/internal/usecase"
)

func main() {
	ctx := context.Background()
	logging.Init(false)
	startup := logging.NewStartupLogger("task-dispatcher")

	// ---- AWS SDK config ----
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	// ---- Configuration (read only here) ----
	var params paramstore.Getter
	if strings.TrimSpace(os.Getenv("PARAM_PREFIX")) != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create SSM client")
		}
		params = ssmClient
	}
	cfg, err := appconfig.LoadDispatch(ctx, os.Getenv, params)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ---- Clients ----
	launcher, err := orchestrator.New(awsecs.NewFromConfig(awsCfg), orchestrator.Network{
		Subnets:        cfg.Subnets,
		SecurityGroups: cfg.SecurityGroups,
		AssignPublicIP: cfg.AssignPublicIP,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ECS client")
	}

	// Left as a nil interface when no table is configured.
	var ledger usecase.LaunchLedger
	if cfg.LedgerTable != "" {
		ledgerClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.LedgerTable)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create launch ledger")
		}
		ledger = ledgerClient
	}

	// ---- Handler ----
	dispatcher, err := usecase.NewDispatchService(launcher, ledger, usecase.TaskTemplate{
		Cluster:        cfg.Cluster,
		TaskDefinition: cfg.TaskDefinition,
		Container:      cfg.ContainerName,
		LaunchType:     cfg.LaunchType,
		Entrypoint:     cfg.Entrypoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dispatch service")
	}
	h, err := handler.NewDispatchHandler(dispatcher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create handler")
	}

	startup.
		Resource("cluster", cfg.Cluster).
		Resource("taskDefinition", cfg.TaskDefinition).
		Resource("ledgerTable", cfg.LedgerTable).
		Feature("launchLedger", ledger != nil).
		Feature("paramStore", cfg.ParamPrefix != "").
		Config("container", cfg.ContainerName).
		Config("launchType", cfg.LaunchType).
		Config("entrypoint", strings.Join(cfg.Entrypoint, " ")).
		Config("subnets", strings.Join(cfg.Subnets, ",")).
		Config("securityGroups", strings.Join(cfg.SecurityGroups, ",")).
		Log()

	lambda.Start(h.Handle)
}
