package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gricce/fuelqpro-console/internal/api"
	"github.com/gricce/fuelqpro-console/internal/blob"
	"github.com/gricce/fuelqpro-console/internal/delivery"
	"github.com/gricce/fuelqpro-console/internal/flow"
	"github.com/gricce/fuelqpro-console/internal/genai"
	"github.com/gricce/fuelqpro-console/internal/plan"
	"github.com/gricce/fuelqpro-console/internal/store"
	"github.com/gricce/fuelqpro-console/internal/util"
	"google.golang.org/api/option"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FuelQ Pro state data
	DefaultStateDir = "/var/lib/fuelqpro"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "fuelqpro.db"
	// DefaultBucketName is the default GCS bucket for plan PDFs
	DefaultBucketName = "fuelqpro-pdfs"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Plan generation degrades to the templated fallback without a client.
	var aiClient *genai.Client
	if *flags.openaiKey != "" {
		aiClient, err = genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Error("Failed to initialize OpenAI client", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("OPENAI_API_KEY not set, plans will use the templated fallback")
	}
	// Assign through a local so a nil *genai.Client stays a nil interface.
	var textClient plan.TextClient
	if aiClient != nil {
		textClient = aiClient
	}
	plans := plan.NewGenerator(textClient)

	// PDF delivery is optional; without a bucket the engine apologizes on
	// PDF requests but the questionnaire still works.
	var bucket blob.Bucket
	var deliverer flow.DocumentDeliverer
	if *flags.bucketName != "" {
		var bucketOpts []option.ClientOption
		if *flags.credentials != "" {
			bucketOpts = append(bucketOpts, option.WithCredentialsFile(*flags.credentials))
		}
		gcs, err := blob.NewGCSBucket(ctx, *flags.bucketName, bucketOpts...)
		if err != nil {
			slog.Error("Failed to initialize GCS bucket", "error", err)
			os.Exit(1)
		}
		bucket = gcs
		deliverer = delivery.New(plans, gcs, st)
	} else {
		slog.Warn("GCS_BUCKET_NAME not set, PDF delivery disabled")
	}

	engine := flow.NewEngine(st, plans, deliverer)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.twilioToken != "" {
		apiOpts = append(apiOpts, api.WithTwilioAuthToken(*flags.twilioToken))
	}
	if *flags.publicBaseURL != "" {
		apiOpts = append(apiOpts, api.WithPublicBaseURL(*flags.publicBaseURL))
	}
	var verifier api.APIVerifier
	if aiClient != nil {
		verifier = aiClient
	}
	server := api.NewServer(engine, bucket, verifier, apiOpts...)

	slog.Info("Bootstrapping FuelQ Pro console",
		"api_addr", *flags.apiAddr,
		"openai_configured", aiClient != nil,
		"bucket_configured", bucket != nil,
		"signature_validation", *flags.twilioToken != "")
	if err := server.Run(ctx); err != nil {
		slog.Error("FuelQ Pro console failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("FuelQ Pro console exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	ProjectID     string
	Credentials   string
	BucketName    string
	OpenAIKey     string
	TwilioToken   string
	PublicBaseURL string
	APIAddr       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	projectID     *string
	credentials   *string
	bucketName    *string
	openaiKey     *string
	twilioToken   *string
	publicBaseURL *string
	apiAddr       *string
}

// initializeLogger sets up structured logging; $DEBUG raises the level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("FUELQPRO_STATE_DIR"),
		ProjectID:     os.Getenv("FIREBASE_PROJECT_ID"),
		Credentials:   os.Getenv("FIREBASE_CREDENTIALS"),
		BucketName:    os.Getenv("GCS_BUCKET_NAME"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		APIAddr:       os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FUELQPRO_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.BucketName == "" {
		config.BucketName = DefaultBucketName
	}
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		} else {
			config.APIAddr = ":8080"
		}
	}
	// Without a Firestore project, fall back to a SQL store; without a DSN,
	// SQLite in the state directory.
	if config.ProjectID == "" && config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database configured, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"FUELQPRO_STATE_DIR", config.StateDir,
		"FIREBASE_PROJECT_ID_SET", config.ProjectID != "",
		"GCS_BUCKET_NAME", config.BucketName,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_AUTH_TOKEN_SET", config.TwilioToken != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for FuelQ Pro data (overrides $FUELQPRO_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the SQL store (overrides $DATABASE_URL)"),
		projectID:     flag.String("firebase-project", config.ProjectID, "GCP project for the Firestore store (overrides $FIREBASE_PROJECT_ID)"),
		credentials:   flag.String("credentials", config.Credentials, "service account key file for Firestore and GCS (overrides $FIREBASE_CREDENTIALS)"),
		bucketName:    flag.String("bucket", config.BucketName, "GCS bucket for plan PDFs (overrides $GCS_BUCKET_NAME)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		twilioToken:   flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token for webhook signature validation (overrides $TWILIO_AUTH_TOKEN)"),
		publicBaseURL: flag.String("public-base-url", config.PublicBaseURL, "externally visible base URL for signature validation (overrides $PUBLIC_BASE_URL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"projectID_set", *flags.projectID != "",
		"bucket", *flags.bucketName,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Follow an overridden state directory when the DSN is the default one.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// isPostgresDSN reports whether a DSN points at Postgres rather than a
// SQLite file path.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if *flags.projectID != "" || *flags.dbDSN == "" || isPostgresDSN(*flags.dbDSN) {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStore picks the persistence backend and wraps it in the two-tier
// cache so a backend outage degrades instead of breaking conversations.
func buildStore(ctx context.Context, flags Flags) (store.Store, error) {
	var remote store.Store
	var err error
	switch {
	case *flags.projectID != "":
		slog.Debug("Configuring Firestore store", "project", *flags.projectID)
		remote, err = store.NewFirestoreStore(ctx,
			store.WithProjectID(*flags.projectID),
			store.WithCredentialsFile(*flags.credentials))
	case isPostgresDSN(*flags.dbDSN):
		slog.Debug("Configuring PostgreSQL store", "dsn_set", true)
		remote, err = store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		slog.Debug("Configuring SQLite store", "db_path", *flags.dbDSN)
		remote, err = store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
	if err != nil {
		return nil, err
	}
	return store.NewCachedStore(remote), nil
}
