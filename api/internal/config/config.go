package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

type Config struct {
	Port string

	// Question bank
	BankFile            string
	ImageDir            string
	SimilarityThreshold float64
	QuestionWeight      float64
	OptionsWeight       float64
	PunctuationMode     string // "disabled" | "to_fullwidth" | "to_halfwidth"
	MaxShortSide        int

	// Image slicer
	HeightThreshold      int
	AspectRatioThreshold float64
	SliceHeight          int
	OverlapRatio         float64

	// Text stitcher
	OverlapMatchLines int
	MinSimilarity     float64

	// Engines
	DefaultEngine   string
	OpenRouterKey   string
	OpenRouterModel string
	AnswerModel     string
	NoteModel       string
	NoteStyle       string
	NoteMaxLength   int
	QuestionType    string // "single" | "multiple"
	SiteURL         string
	SiteName        string
	GeminiAPIKey    string
	GeminiModel     string
	TessLanguages   string

	// Optional Postgres cache of model results; empty disables caching.
	DatabaseURL string

	TelegramBotToken string
	WebhookURL       string // empty means long polling
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Fatalf("env %s: not an integer: %q", k, v)
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Fatalf("env %s: not a number: %q", k, v)
	}
	return def
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8000"),

		BankFile:            getEnv("BANK_FILE", "questions_db.json"),
		ImageDir:            getEnv("IMAGE_DIR", "images"),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.75),
		QuestionWeight:      getEnvFloat("QUESTION_WEIGHT", 0.6),
		OptionsWeight:       getEnvFloat("OPTIONS_WEIGHT", 0.4),
		PunctuationMode:     getEnv("PUNCTUATION_MODE", "disabled"),
		MaxShortSide:        getEnvInt("MAX_SHORT_SIDE", 1200),

		HeightThreshold:      getEnvInt("HEIGHT_THRESHOLD", 3600),
		AspectRatioThreshold: getEnvFloat("ASPECT_RATIO_THRESHOLD", 3.0),
		SliceHeight:          getEnvInt("SLICE_HEIGHT", 1400),
		OverlapRatio:         getEnvFloat("OVERLAP_RATIO", 0.18),

		OverlapMatchLines: getEnvInt("OVERLAP_MATCH_LINES", 10),
		MinSimilarity:     getEnvFloat("MIN_SIMILARITY", 0.6),

		DefaultEngine:   getEnv("DEFAULT_ENGINE", "openrouter"),
		OpenRouterKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel: getEnv("OPENROUTER_MODEL", "qwen/qwen2.5-vl-72b-instruct"),
		AnswerModel:     getEnv("ANSWER_MODEL", ""),
		NoteModel:       getEnv("NOTE_MODEL", ""),
		NoteStyle:       getEnv("NOTE_STYLE", ""),
		NoteMaxLength:   getEnvInt("NOTE_MAX_LENGTH", 200),
		QuestionType:    getEnv("QUESTION_TYPE", "single"),
		SiteURL:         getEnv("SITE_URL", ""),
		SiteName:        getEnv("SITE_NAME", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		TessLanguages:   getEnv("TESSERACT_LANGS", "chi_tra+eng"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// LoadBot is Load plus the credentials only the Telegram front-end needs.
func LoadBot() *Config {
	c := Load()
	c.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
	return c
}

// Validate catches configuration errors before any batch starts.
func (c *Config) Validate() error {
	overlap := int(float64(c.SliceHeight) * c.OverlapRatio)
	if c.SliceHeight-overlap <= 0 {
		return fmt.Errorf("slice step height must be positive: slice_height=%d overlap_ratio=%.2f", c.SliceHeight, c.OverlapRatio)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold out of range: %.3f", c.SimilarityThreshold)
	}
	switch c.PunctuationMode {
	case "disabled", "to_fullwidth", "to_halfwidth":
	default:
		return fmt.Errorf("unknown punctuation mode %q", c.PunctuationMode)
	}
	switch c.DefaultEngine {
	case "openrouter":
		if c.OpenRouterKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is empty but openrouter is the default engine")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is empty but gemini is the default engine")
		}
	case "tesseract":
	default:
		return fmt.Errorf("unknown default engine %q", c.DefaultEngine)
	}
	return nil
}
