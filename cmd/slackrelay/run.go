package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"github.com/slackrelay/slackrelay/pkg/config"
	"github.com/slackrelay/slackrelay/pkg/consumer"
	"github.com/slackrelay/slackrelay/pkg/dedupe"
	"github.com/slackrelay/slackrelay/pkg/ingest"
	"github.com/slackrelay/slackrelay/pkg/logger"
	"github.com/slackrelay/slackrelay/pkg/providers"
	"github.com/slackrelay/slackrelay/pkg/queue"
	"github.com/slackrelay/slackrelay/pkg/slackapi"
	"github.com/slackrelay/slackrelay/pkg/verify"
)

// runIngest starts the webhook server. Missing configuration is not fatal
// here: the handler reports it per request as a 500 naming the setting, the
// way the source system behaved.
func runIngest(ctx context.Context, cfg *config.Config) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	publisher := queue.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue.URL)
	verifier := verify.NewVerifier(cfg.Slack.SigningSecret, cfg.Slack.AllowedSkewSec)
	server := ingest.NewServer(cfg, verifier, publisher)

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.InfoCF("main", "Ingestion server listening", map[string]interface{}{
		"addr": cfg.Server.ListenAddr,
	})
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runConsume starts the queue consumer. Unlike the ingestion stage there is
// no caller to report to, so missing configuration fails at startup.
func runConsume(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateConsume(); err != nil {
		return err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	store := dedupe.NewDynamoStore(
		dynamodb.NewFromConfig(awsCfg),
		cfg.Dedupe.Table,
		cfg.Dedupe.KeyField,
		cfg.Dedupe.TTLField,
	)
	guard := dedupe.NewGuard(store, cfg.Dedupe.TTLSec)

	invoker, err := newInvoker(ctx, cfg)
	if err != nil {
		return err
	}

	slackClient := slackapi.NewClient(cfg.Slack.BotToken)
	pipeline := consumer.NewPipeline(guard, slackClient, invoker, slackClient)

	c := queue.NewConsumer(
		sqs.NewFromConfig(awsCfg),
		cfg.Queue.URL,
		cfg.Queue.WaitTimeSec,
		cfg.Queue.BatchSize,
		cfg.Queue.MaxConcurrency,
		pipeline.Handle,
	)
	return c.Run(ctx)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runIngest(ctx, cfg) })
	g.Go(func() error { return runConsume(ctx, cfg) })
	return g.Wait()
}

func newInvoker(ctx context.Context, cfg *config.Config) (providers.Invoker, error) {
	switch cfg.AI.Provider {
	case "anthropic":
		return providers.NewAnthropicInvoker(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens), nil
	case "openai":
		return providers.NewOpenAIInvoker(cfg.AI.APIKey, cfg.AI.Model), nil
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AI.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config for bedrock: %w", err)
		}
		return providers.NewBedrockInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg.AI.Model, cfg.AI.MaxTokens), nil
	default:
		return nil, &config.InvalidError{Setting: "SLACKRELAY_AI_PROVIDER", Reason: "must be one of bedrock, anthropic, openai"}
	}
}
