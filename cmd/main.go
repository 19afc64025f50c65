package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"appointment-bot/handler"
	"appointment-bot/internal/domain"
	"appointment-bot/internal/integrations/paramstore"
	"appointment-bot/internal/integrations/telegram"
	appconfig "appointment-bot/internal/platform/config"
	"appointment-bot/internal/platform/logging"
	"appointment-bot/internal/repository"
	"appointment-bot/internal/usecase"
)

// appointmentStore is what the bot needs from any appointment backend.
type appointmentStore interface {
	usecase.AppointmentAppender
	LoadAll(ctx context.Context) ([]domain.Appointment, error)
}

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Static tables and secrets ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	params, err := loadStartupParams(ctx, ssmClient, cfg.ParamPrefix)
	if err != nil {
		logger.Error("failed to load startup parameters", "err", err)
		os.Exit(1)
	}

	// ---- Storage ----
	appointments, err := newAppointmentStore(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to create appointment store", "backend", cfg.AppointmentBackend, "err", err)
		os.Exit(1)
	}
	existing, err := appointments.LoadAll(ctx)
	if err != nil {
		logger.Error("failed to read appointments", "backend", cfg.AppointmentBackend, "err", err)
		os.Exit(1)
	}
	logger.Info("appointment store ready", "backend", cfg.AppointmentBackend, "appointments", len(existing))

	sessions, err := newConversationStore(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to create conversation store", "backend", cfg.SessionBackend, "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	bot, err := telegram.NewClient(ssmClient, cfg.ParamPrefix, telegram.WithBaseURL(cfg.TelegramAPIURL))
	if err != nil {
		logger.Error("failed to create Telegram client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	dispatcher, err := usecase.NewDispatcher(bot, cfg.GroupChatID, params.directory, logger)
	if err != nil {
		logger.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}
	engine, err := usecase.NewEngine(params.gate, params.directory, appointments, sessions, bot, dispatcher, logger)
	if err != nil {
		logger.Error("failed to create conversation engine", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(engine, bot, params.webhookSecret, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

type startupParams struct {
	webhookSecret string
	gate          *usecase.AccessGate
	directory     *usecase.TeamDirectory
}

func loadStartupParams(ctx context.Context, ps *paramstore.Client, prefix string) (startupParams, error) {
	secretName := prefix + "/webhook_secret"
	adminsName := prefix + "/admins"
	directoryName := prefix + "/team_directory"

	values, err := ps.GetParameters(ctx, secretName, adminsName, directoryName)
	if err != nil {
		return startupParams{}, err
	}
	gate, err := usecase.ParseAllowList([]byte(values[adminsName]))
	if err != nil {
		return startupParams{}, fmt.Errorf("%s: %w", adminsName, err)
	}
	directory, err := usecase.ParseTeamDirectory([]byte(values[directoryName]))
	if err != nil {
		return startupParams{}, fmt.Errorf("%s: %w", directoryName, err)
	}
	return startupParams{
		webhookSecret: values[secretName],
		gate:          gate,
		directory:     directory,
	}, nil
}

func newAppointmentStore(cfg appconfig.Config, awsCfg aws.Config) (appointmentStore, error) {
	switch cfg.AppointmentBackend {
	case appconfig.BackendFile:
		return repository.NewFileStore(cfg.AppointmentsFile)
	case appconfig.BackendS3:
		return repository.NewS3Store(awss3.NewFromConfig(awsCfg), cfg.AppointmentsBucket, cfg.AppointmentsKey)
	default:
		return repository.NewAppointmentTable(awsdynamodb.NewFromConfig(awsCfg), cfg.AppointmentsTable)
	}
}

func newConversationStore(cfg appconfig.Config, awsCfg aws.Config) (usecase.ConversationStore, error) {
	switch cfg.SessionBackend {
	case appconfig.BackendMemory:
		return repository.NewMemorySessions(), nil
	case appconfig.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return repository.NewRedisSessions(rdb, cfg.RedisPrefix)
	default:
		return repository.NewSessionTable(awsdynamodb.NewFromConfig(awsCfg), cfg.SessionTable)
	}
}
