package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/brettboylen/social-listener/api"
	"github.com/brettboylen/social-listener/db"
	"github.com/brettboylen/social-listener/eventbus"
	"github.com/brettboylen/social-listener/jobs"
	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/orchestrator"
	"github.com/brettboylen/social-listener/server"
	"github.com/brettboylen/social-listener/storage"
	"github.com/brettboylen/social-listener/utils"
	"github.com/brettboylen/social-listener/worker"
)

const usage = `usage: social-listener [flags] <command>

commands:
  serve                          run the management API
  worker                         consume jobs from Kafka
  collect <collection_id>        run collection and enrichment for one run
  refresh <collection_id>        refresh engagements of a run
  refresh -post-ids a,b          refresh engagements of specific posts
  enrich <collection_id>         re-run enrichment for a run
  enrich -post-ids a,b           run enrichment for specific posts
  submit -run run.yaml           create a run from a YAML file and dispatch it
`

// app holds the wired components shared by every command
type app struct {
	config    *utils.Config
	database  *db.Database
	status    server.StatusStore
	pipeline  *worker.Pipeline
	refresher *worker.Refresher
	handlers  *jobs.Handlers
	mongo     *mongo.Client
	log       *logrus.Logger
}

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "debug", "Logging level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := setupLogger(*logLevel)
	log.Info("Starting Social Listener")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForShutdown(cancel, log)

	a, err := newApp(ctx, config, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise")
	}
	defer a.close()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Command failed")
		a.close()
		os.Exit(1)
	}

	log.Info("Social Listener stopped")
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func newApp(ctx context.Context, config *utils.Config, log *logrus.Logger) (*app, error) {
	database, err := db.NewDatabase(config.Database.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &app{config: config, database: database, log: log}

	client := api.NewClient(config.ClientOptions(), log)
	orch, err := orchestrator.NewFromSettings(client, config.IsProduction(), config.App.MockSeed, log)
	if err != nil {
		a.close()
		return nil, err
	}

	// without mongo: status lives in memory and media keeps its raw urls
	var media worker.MediaStore
	if config.Database.MongoURI != "" {
		a.mongo, err = db.ConnectMongo(ctx, config.Database.MongoURI, log)
		if err != nil {
			a.close()
			return nil, err
		}
		mdb := a.mongo.Database(config.Database.MongoDatabase)
		a.status = db.NewStatusStore(mdb, log)

		blobs, err := storage.NewGridFSStore(mdb, config.Database.MediaBucket, log)
		if err != nil {
			a.close()
			return nil, err
		}
		media = storage.NewMediaDownloader(blobs, log)
	} else {
		log.Warn("MONGO_URI not set, using in-memory status store without media upload")
		a.status = db.NewMemoryStatusStore()
	}

	collector := worker.NewCollectionWorker(database, a.status, orch, media, log)
	enricher := worker.NewEnricher(database, a.status, config.Database.EnrichmentSQLDir, log)
	a.pipeline = worker.NewPipeline(collector, enricher, a.status, log)
	a.refresher = worker.NewRefresher(database, orch, log)
	a.handlers = jobs.NewHandlers(a.pipeline, a.refresher, enricher, log)

	return a, nil
}

func (a *app) close() {
	if a.mongo != nil {
		if err := a.mongo.Disconnect(context.Background()); err != nil {
			a.log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
		a.mongo = nil
	}
	if a.database != nil {
		a.database.Close()
		a.database = nil
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "serve":
		return a.serve(ctx)
	case "worker":
		return a.consume(ctx)
	case "collect":
		if len(args) != 1 {
			return fmt.Errorf("collect needs exactly one collection id")
		}
		if err := a.ensureStatus(ctx, args[0]); err != nil {
			return err
		}
		return a.pipeline.Run(ctx, args[0])
	case "refresh":
		return a.refresh(ctx, args)
	case "enrich":
		return a.enrich(ctx, args)
	case "submit":
		return a.submit(ctx, args)
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

// dispatcher publishes to Kafka when brokers are configured, else runs jobs
// in this process. The returned func waits for in-process jobs.
func (a *app) dispatcher(ctx context.Context) (jobs.Dispatcher, func(), error) {
	if a.config.Kafka.BootstrapServers == "" {
		inline := jobs.NewInlineDispatcher(ctx, a.handlers, a.log)
		return inline, inline.Wait, nil
	}

	topic := eventbus.NewTopic(a.config.Kafka.Topic)
	if err := eventbus.EnsureTopics(ctx, a.config.Kafka.BootstrapServers, topic, 3); err != nil {
		return nil, nil, err
	}
	bus, err := eventbus.NewKafkaBus(a.config.Kafka.BootstrapServers, a.log)
	if err != nil {
		return nil, nil, err
	}
	return jobs.NewKafkaDispatcher(bus, topic, a.log), bus.Close, nil
}

func (a *app) serve(ctx context.Context) error {
	dispatcher, wait, err := a.dispatcher(ctx)
	if err != nil {
		return err
	}
	defer wait()

	svc := server.NewCollectionService(a.database, a.status, dispatcher, a.log)
	srv := server.New(svc, a.config.Server.MaxRequestsPerMinute, a.log)
	return srv.Start(ctx, a.config.Server.Port)
}

func (a *app) consume(ctx context.Context) error {
	if a.config.Kafka.BootstrapServers == "" {
		return fmt.Errorf("worker mode needs KAFKA_BOOTSTRAP_SERVERS")
	}

	topic := eventbus.NewTopic(a.config.Kafka.Topic)
	if err := eventbus.EnsureTopics(ctx, a.config.Kafka.BootstrapServers, topic, 3); err != nil {
		return err
	}
	bus, err := eventbus.NewKafkaBus(a.config.Kafka.BootstrapServers, a.log)
	if err != nil {
		return err
	}
	defer bus.Close()

	return jobs.Consume(ctx, bus, a.config.Kafka.GroupID, topic, a.handlers)
}

func (a *app) refresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	postIDs := fs.String("post-ids", "", "Comma-separated post ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := worker.RefreshRequest{PostIDs: utils.ParseList(*postIDs)}
	if fs.NArg() > 0 {
		req.CollectionID = fs.Arg(0)
	}

	n, err := a.refresher.Run(ctx, req)
	if err != nil {
		return err
	}
	a.log.WithField("snapshots", n).Info("Engagement refresh finished")
	return nil
}

func (a *app) enrich(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	postIDs := fs.String("post-ids", "", "Comma-separated post ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if ids := utils.ParseList(*postIDs); len(ids) > 0 {
		return a.handlers.Enrich.RunForPosts(ctx, ids)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("enrich needs a collection id or -post-ids")
	}
	return a.handlers.Enrich.Run(ctx, fs.Arg(0))
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	runPath := fs.String("run", "", "Path to a YAML run file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runPath == "" {
		return fmt.Errorf("submit needs -run")
	}

	run, err := utils.LoadRunConfig(*runPath)
	if err != nil {
		return err
	}

	dispatcher, wait, err := a.dispatcher(ctx)
	if err != nil {
		return err
	}
	defer wait()

	svc := server.NewCollectionService(a.database, a.status, dispatcher, a.log)
	id, err := svc.CreateFromConfig(ctx, run.UserID, "", run.Question, run.Config)
	if err != nil {
		return err
	}

	a.log.WithField("collection_id", id).Info("Collection submitted")
	return nil
}

// ensureStatus recreates a pending status document for a stored run that has
// none, e.g. after a restart on the in-memory store
func (a *app) ensureStatus(ctx context.Context, collectionID string) error {
	_, err := a.status.Get(ctx, collectionID)
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	cfg, _, err := a.database.CollectionConfig(ctx, collectionID)
	if err != nil && !errors.Is(err, models.ErrInvalidConfig) {
		return err
	}
	return a.status.Create(ctx, &models.CollectionStatus{CollectionID: collectionID, Config: cfg})
}

// waitForShutdown cancels ctx on the first shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()
}
