package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/joho/godotenv"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/config"
	"quizbank/api/internal/handle"
	"quizbank/api/internal/ocr"
	"quizbank/api/internal/ocr/gemini"
	"quizbank/api/internal/ocr/openrouter"
	"quizbank/api/internal/ocr/tesseract"
	"quizbank/api/internal/pipeline"
	"quizbank/api/internal/slicer"
	"quizbank/api/internal/stitch"
	"quizbank/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}

	b, err := bank.Open(cfg.BankFile, cfg.ImageDir, bank.Options{
		SimilarityThreshold: cfg.SimilarityThreshold,
		QuestionWeight:      cfg.QuestionWeight,
		OptionsWeight:       cfg.OptionsWeight,
		PunctuationMode:     cfg.PunctuationMode,
		MaxShortSide:        cfg.MaxShortSide,
	})
	if err != nil {
		log.Fatalf("bank: %v", err)
	}
	log.Printf("bank loaded: %d questions from %s", b.Len(), cfg.BankFile)

	engines := buildEngines(cfg)

	pipe := &pipeline.Pipeline{
		Bank: b,
		SlicerCfg: slicer.Config{
			HeightThreshold:      cfg.HeightThreshold,
			AspectRatioThreshold: cfg.AspectRatioThreshold,
			SliceHeight:          cfg.SliceHeight,
			OverlapRatio:         cfg.OverlapRatio,
		},
		Stitcher:     stitch.New(cfg.OverlapMatchLines, cfg.MinSimilarity),
		MaxShortSide: cfg.MaxShortSide,
		CacheMaxAge:  30 * 24 * time.Hour,
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db = openDB(cfg.DatabaseURL)
		pipe.ExtractCache = store.NewExtractRepo(db)
		pipe.AnswerCache = store.NewAnswerRepo(db)
	}

	h := handle.New(engines, pipe, b, cfg.QuestionType, cfg.NoteStyle, cfg.NoteMaxLength)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	h.Register(mux)

	addr := ":" + cfg.Port
	log.Printf("quizbank listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func buildEngines(cfg *config.Config) *ocr.Engines {
	engines := ocr.NewEngines(cfg.DefaultEngine)
	if cfg.OpenRouterKey != "" {
		engines.Register(openrouter.New(openrouter.Config{
			APIKey:      cfg.OpenRouterKey,
			Model:       cfg.OpenRouterModel,
			AnswerModel: cfg.AnswerModel,
			NoteModel:   cfg.NoteModel,
			SiteURL:     cfg.SiteURL,
			SiteName:    cfg.SiteName,
		}))
	}
	if cfg.GeminiAPIKey != "" {
		engines.Register(gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
	}
	engines.Register(tesseract.New(cfg.TessLanguages))
	return engines
}

func openDB(dsn string) *sql.DB {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("db.Ping: %v", err)
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}
	log.Printf("model-result cache enabled")
	return db
}
