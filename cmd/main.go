package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/adapters/generator"
	"github.com/voxhall/voxhall/adapters/recognizer"
	"github.com/voxhall/voxhall/adapters/sink"
	"github.com/voxhall/voxhall/adapters/store"
	"github.com/voxhall/voxhall/adapters/synthesizer"
	"github.com/voxhall/voxhall/domain/repositories"
	"github.com/voxhall/voxhall/internal/api"
	"github.com/voxhall/voxhall/internal/auth"
	"github.com/voxhall/voxhall/internal/websocket"
	"github.com/voxhall/voxhall/usecase/voice"
)

func main() {
	// A missing .env is fine in deployed environments.
	godotenv.Load()

	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	demoMode := os.Getenv("VOXHALL_MODE") == "demo"

	// Storage
	chambers := store.NewMemoryStore()
	transcript, mongoClient := buildSink(ctx, logger)
	if mongoClient != nil {
		defer mongoClient.Disconnect(context.Background())
	}

	// Voice pipeline adapters
	rec := buildRecognizer(demoMode, logger)
	gen := buildGenerator(demoMode, chambers, logger)
	synth := buildSynthesizer(demoMode, logger)

	// Voice core
	bus := voice.NewEventBus(logger)
	session := voice.NewSession(rec, bus, logger)
	resolver := voice.NewProfileResolver(logger)
	orchestrator := voice.NewOrchestrator(chambers, gen, synth, transcript, resolver, session, bus, logger)
	feedback := voice.NewFeedbackFilter(logger)
	controller := voice.NewController(session, orchestrator, synth, rec, chambers, transcript, feedback, bus, logger)
	go controller.Run(ctx)

	// Event fan-out
	hub := websocket.NewHub(logger)
	go hub.Run(ctx, bus.Events())

	// HTTP control plane
	authenticator := buildAuthenticator(logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := api.NewServer(session, controller, chambers, chambers, transcript, authenticator, hub, logger)
	server.InitRoutes(e)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voxhall started",
		zap.String("port", port),
		zap.Bool("demo_mode", demoMode))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	controller.Pause()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildSink prefers MongoDB persistence, falling back to the in-memory
// transcript when no MONGODB_URI is configured.
func buildSink(ctx context.Context, logger *zap.Logger) (repositories.TranscriptSink, *mongo.Client) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		logger.Info("MONGODB_URI not set, using in-memory transcript")
		return sink.NewMemorySink(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Warn("MongoDB connection failed, using in-memory transcript", zap.Error(err))
		return sink.NewMemorySink(), nil
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		logger.Warn("MongoDB ping failed, using in-memory transcript", zap.Error(err))
		client.Disconnect(context.Background())
		return sink.NewMemorySink(), nil
	}

	dbName := os.Getenv("MONGODB_DATABASE")
	if dbName == "" {
		dbName = "voxhall"
	}
	logger.Info("Transcript persistence enabled", zap.String("database", dbName))
	return sink.NewMongoSink(client.Database(dbName)), client
}

func buildRecognizer(demoMode bool, logger *zap.Logger) repositories.SpeechRecognizer {
	if demoMode || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		logger.Info("Using mock speech recognizer")
		return recognizer.NewMockRecognizer(logger)
	}
	source := recognizer.NewDefaultMicSource(logger)
	return recognizer.NewGoogleRecognizer(source, recognizer.GoogleConfig{}, logger)
}

func buildGenerator(demoMode bool, chambers repositories.ChamberStore, logger *zap.Logger) repositories.ResponseGenerator {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if demoMode || apiKey == "" {
		logger.Info("Using mock response generator")
		return generator.NewMockGenerator(chambers, logger)
	}

	gen, err := generator.NewGeminiGenerator(context.Background(), generator.GeminiConfig{
		APIKey: apiKey,
		Model:  os.Getenv("GEMINI_MODEL"),
	}, chambers, logger)
	if err != nil {
		logger.Warn("Gemini unavailable, using mock response generator", zap.Error(err))
		return generator.NewMockGenerator(chambers, logger)
	}
	return gen
}

func buildSynthesizer(demoMode bool, logger *zap.Logger) repositories.SpeechSynthesizer {
	if demoMode {
		logger.Info("Using mock speech synthesizer")
		return synthesizer.NewMockSynthesizer(logger)
	}

	var cloud synthesizer.Backend
	if os.Getenv("ELEVEN_LABS_API_KEY") != "" {
		backend, err := synthesizer.NewElevenLabsBackend(synthesizer.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Warn("Cloud TTS unavailable", zap.Error(err))
		} else {
			cloud = backend
		}
	}

	var local synthesizer.Backend
	if serverURL := os.Getenv("LOCAL_VOICE_SERVER_URL"); serverURL != "" {
		backend, err := synthesizer.NewLocalBackend(serverURL, logger)
		if err != nil {
			logger.Warn("Local voice server unavailable", zap.Error(err))
		} else {
			local = backend
		}
	}

	var output synthesizer.Output = synthesizer.NewDefaultOutput(logger)
	if os.Getenv("VOXHALL_HEADLESS") == "true" {
		output = synthesizer.NewDiscardOutput()
	}

	system := synthesizer.NewSystemBackend(logger)
	return synthesizer.NewRouter(cloud, local, system, output, logger)
}

func buildAuthenticator(logger *zap.Logger) *auth.Authenticator {
	authenticator, err := auth.NewAuthenticatorFromEnv()
	if err != nil {
		logger.Warn("JWT_SECRET not set, using development secret")
		authenticator, _ = auth.NewAuthenticator([]byte("voxhall-dev-secret"))
	}
	return authenticator
}
