package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"applyflow-engine/internal/ai"
	"applyflow-engine/internal/apply"
	"applyflow-engine/internal/browser"
	"applyflow-engine/internal/config"
	"applyflow-engine/internal/events"
	"applyflow-engine/internal/ledger"
	"applyflow-engine/internal/platform"
	"applyflow-engine/internal/report"
	"applyflow-engine/internal/run"
	"applyflow-engine/internal/scheduler"
	"applyflow-engine/internal/secrets"
	"applyflow-engine/internal/verify"
)

func main() {
	once := flag.Bool("once", false, "run a single round and exit")
	headful := flag.Bool("headful", false, "show the browser window")
	setSecret := flag.String("set-secret", "", "store a secret in the OS keyring (ai | notion | imap) and exit")
	deleteSecret := flag.String("delete-secret", "", "remove a secret from the OS keyring (ai | notion | imap) and exit")
	flag.Parse()

	// .env is optional; real secrets live in the OS keyring.
	_ = godotenv.Load()

	dataDir := os.Getenv("APPLYFLOW_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}

	// Keyring management does not need a fully valid run config, only the
	// email identity for the imap account name.
	if *setSecret != "" || *deleteSecret != "" {
		if err := manageSecret(cfg, *setSecret, *deleteSecret); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, val := config.NormalizeAndValidate(cfg)
	for _, w := range val.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !val.OK() {
		for _, e := range val.Errors {
			log.Printf("[config] error: %s", e)
		}
		os.Exit(1)
	}

	// Write the normalized form back so filled-in defaults are visible
	// (and editable) in the user's file. Best effort.
	if err := config.SaveAtomic(userCfgPath, cfg); err != nil {
		log.Printf("[config] could not persist normalized config: %v", err)
	}

	ledgerPath := filepath.Join(dataDir, "applications.db")
	if cfg.App.LedgerBackend == "csv" {
		ledgerPath = filepath.Join(dataDir, "applications.csv")
	}
	led, err := ledger.Open(cfg.App.LedgerBackend, ledgerPath)
	if err != nil {
		log.Fatalf("ledger open failed (%s): %v", ledgerPath, err)
	}
	defer led.Close()

	orch := &run.Orchestrator{
		Cfg:      cfg,
		Ledger:   led,
		Sources:  buildSources(cfg),
		Verifier: buildVerifier(cfg),
		AI:       buildGenerator(cfg),
		Sink:     buildSink(cfg),
		Hub:      events.NewHub(),
		NewPage: func() (browser.Page, error) {
			return browser.NewRodPage(!*headful)
		},
	}
	if len(orch.Sources) == 0 {
		log.Fatal("no enabled platforms have a jobs_file configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live progress feed. The orchestrator publishes typed events; the
	// JSON rendering happens here, at the output boundary.
	evCh := orch.Hub.Subscribe()
	defer orch.Hub.Unsubscribe(evCh)
	go func() {
		for evt := range evCh {
			if b, err := json.Marshal(evt); err == nil {
				log.Printf("[events] %s", b)
			}
		}
	}()

	if *once || cfg.App.RunIntervalMinutes <= 0 {
		if _, err := orch.RunOnce(ctx); err != nil {
			log.Fatalf("run aborted: %v", err)
		}
		return
	}

	interval := time.Duration(cfg.App.RunIntervalMinutes) * time.Minute
	scheduler.Every(ctx, interval, "applyflow", func(ctx context.Context) error {
		_, err := orch.RunOnce(ctx)
		return err
	})
}

// manageSecret handles -set-secret / -delete-secret. The value is read
// from stdin so it never shows up in shell history or process listings.
func manageSecret(cfg config.Config, setName, deleteName string) error {
	if deleteName != "" {
		account, err := secretAccount(cfg, deleteName)
		if err != nil {
			return err
		}
		if err := secrets.Delete(account); err != nil {
			return fmt.Errorf("delete %s: %w", account, err)
		}
		log.Printf("[main] removed %s from the keyring", account)
		return nil
	}

	account, err := secretAccount(cfg, setName)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "value for %s: ", account)
	value, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && value == "" {
		return fmt.Errorf("read value: %w", err)
	}
	if err := secrets.Set(account, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("store %s: %w", account, err)
	}
	log.Printf("[main] stored %s in the keyring", account)
	return nil
}

func secretAccount(cfg config.Config, name string) (string, error) {
	switch name {
	case "ai":
		return secrets.AccountAIKey, nil
	case "notion":
		return secrets.AccountNotionToken, nil
	case "imap":
		return secrets.IMAPKeyringAccount(cfg), nil
	}
	return "", fmt.Errorf("unknown secret %q (want ai, notion or imap)", name)
}

func buildSources(cfg config.Config) []platform.Source {
	var sources []platform.Source
	for name, pcfg := range cfg.Platforms {
		if !pcfg.Enabled {
			continue
		}
		if pcfg.JobsFile == "" {
			log.Printf("[main] platform %s enabled but has no jobs_file, skipping", name)
			continue
		}
		sources = append(sources, platform.NewFileSource(name, pcfg.JobsFile))
	}
	return sources
}

func buildVerifier(cfg config.Config) apply.Verifier {
	if !cfg.Email.Enabled {
		return nil
	}
	password, err := secrets.GetIMAPPassword(cfg)
	if err != nil {
		log.Printf("[main] imap password unavailable, email verification disabled: %v", err)
		return nil
	}
	return &verify.Waiter{
		Mailbox: &verify.IMAPMailbox{
			Addr:     fmt.Sprintf("%s:%d", cfg.Email.IMAPHost, cfg.Email.IMAPPort),
			Username: cfg.Email.Username,
			Password: password,
			Mailbox:  cfg.Email.Mailbox,
		},
		Timeout:      time.Duration(cfg.Email.TimeoutSeconds) * time.Second,
		PollInterval: time.Duration(cfg.Email.PollSeconds) * time.Second,
		SenderAny:    cfg.Email.SenderAny,
		SubjectAny:   cfg.Email.SubjectAny,
	}
}

func buildGenerator(cfg config.Config) ai.ContentGenerator {
	if !cfg.AI.Enabled {
		return nil
	}
	key, err := secrets.Get(secrets.AccountAIKey)
	if err != nil {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		log.Print("[main] no AI api key in keyring or env, AI disabled")
		return nil
	}
	return ai.NewClaude(ai.ClaudeOptions{
		APIKey:        key,
		Model:         cfg.AI.Model,
		MaxTokens:     cfg.AI.MaxTokens,
		Temperature:   cfg.AI.Temperature,
		ResumeSummary: cfg.AI.ResumeSummary,
		ResumeSkills:  splitList(cfg.AI.ResumeSkills),
	})
}

func buildSink(cfg config.Config) report.ResultsSink {
	if !cfg.Report.Enabled {
		return nil
	}
	token, err := secrets.Get(secrets.AccountNotionToken)
	if err != nil {
		token = os.Getenv("NOTION_TOKEN")
	}
	if token == "" {
		log.Print("[main] no notion token in keyring or env, reporting disabled")
		return nil
	}
	sink := report.NewNotion(token, cfg.Report.DatabaseID)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Ping(pingCtx); err != nil {
		log.Printf("[main] notion database %s unreachable, reporting disabled: %v", cfg.Report.DatabaseID, err)
		return nil
	}
	return sink
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
