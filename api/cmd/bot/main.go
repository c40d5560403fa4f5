package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/joho/godotenv"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/config"
	"quizbank/api/internal/ocr"
	"quizbank/api/internal/ocr/gemini"
	"quizbank/api/internal/ocr/openrouter"
	"quizbank/api/internal/ocr/tesseract"
	"quizbank/api/internal/pipeline"
	"quizbank/api/internal/slicer"
	"quizbank/api/internal/stitch"
	"quizbank/api/internal/store"
	"quizbank/api/internal/telegram"
	"quizbank/api/internal/util"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadBot()
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
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("sql.Open: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(1 * time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("db.Ping: %v", err)
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("db schema: %v", err)
		}
		cancel()
		pipe.ExtractCache = store.NewExtractRepo(db)
		pipe.AnswerCache = store.NewAnswerRepo(db)
		log.Printf("model-result cache enabled")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:          bot,
		EngManager:   ocr.NewManager(engines),
		Pipe:         pipe,
		Bank:         b,
		QuestionType: cfg.QuestionType,
		NoteStyle:    cfg.NoteStyle,
		NoteMaxLen:   cfg.NoteMaxLength,
	}

	http.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
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

	addr := "0.0.0.0:" + cfg.Port
	if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
		startWebhookMode(addr, bot, r, url)
	} else {
		startPollingMode(addr, bot, r)
	}
}

func startWebhookMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	path := "/webhook/" + util.SHA256Hex([]byte(bot.Token))[:16]
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	// ListenForWebhook registers its handler on the default mux.
	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		log.Printf("webhook updates channel closed")
	}()

	log.Printf("webhook listening on %s%s", addr, path)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func startPollingMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	go func() {
		log.Printf("health server listening on %s/healthz", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatal(err)
		}
	}()
	runPolling(context.Background(), bot, r.HandleUpdate)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// runPolling keeps long polling alive through transient Telegram errors.
func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Printf("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			if d < baseDelay {
				d = baseDelay
			}
			if d > maxDelay {
				d = maxDelay
			}
			log.Printf("polling error: %v; retry in %v", err, d)
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}
