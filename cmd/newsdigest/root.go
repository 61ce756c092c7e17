package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/cli"
	"feishu-assistant/internal/config"
	digest "feishu-assistant/internal/news"
	"feishu-assistant/internal/svc"
	"feishu-assistant/pkg/journal"
	"feishu-assistant/pkg/news"
)

const journalMode = "news"

type flags struct {
	configFile string
	source     string
	users      []string
	dryRun     bool
	journalDir string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "newsdigest",
		Short: "Send the daily news reading digest",
		Long: `Picks the day's New York Times top stories and Economist articles, asks the
model for vocabulary, key sentences and a Chinese summary of each, and sends
the digest card to every recipient.

Recipients come from News.Recipients unless --user is given.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, ok := news.ParseSource(f.source)
			if !ok {
				return fmt.Errorf("unknown source %q, want nyt, economist or all", f.source)
			}
			f.source = source
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.configFile, "config", "f", "etc/assistant.yaml", "the config file")
	cmd.Flags().StringVar(&f.source, "source", news.SourceAll, "nyt, economist or all")
	cmd.Flags().StringSliceVar(&f.users, "user", nil, "send to these open_ids instead of the configured recipients")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the digest instead of sending it")
	cmd.Flags().StringVar(&f.journalDir, "journal", "", "write a JSON record of the run into this directory")
	return cmd
}

// recipients returns the --user list when set, else the configured one,
// trimmed and without duplicates.
func (f flags) recipients(cfg *config.Config) []string {
	src := cfg.News.Recipients
	if len(f.users) > 0 {
		src = f.users
	}
	seen := make(map[string]bool, len(src))
	out := make([]string, 0, len(src))
	for _, id := range src {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func run(ctx context.Context, f flags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return err
	}
	logx.MustSetup(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	recipients := f.recipients(cfg)
	if !f.dryRun {
		if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
			return errors.New("feishu app credentials are required to send the digest")
		}
		if len(recipients) == 0 {
			return errors.New("no recipients: set News.Recipients or pass --user")
		}
	}

	svcCtx, err := svc.Build(ctx, *cfg)
	if err != nil {
		return err
	}
	d, err := svcCtx.News.Build(ctx, f.source)
	if err != nil {
		return err
	}
	logx.Infof("newsdigest: %d articles from %s", len(d.Readings), f.source)

	var delivered []string
	if f.dryRun {
		fmt.Println(digest.Text(d))
	} else {
		delivered, err = digest.Push(ctx, svcCtx.Feishu, recipients, d)
		logx.Infof("newsdigest: delivered %d/%d", len(delivered), len(recipients))
	}
	if f.journalDir != "" {
		if jerr := writeJournal(f.journalDir, d, recipients, delivered, err); jerr != nil {
			logx.Errorf("newsdigest: journal: %v", jerr)
		}
	}
	return err
}

func writeJournal(dir string, d *digest.Digest, recipients, delivered []string, runErr error) error {
	w, err := journal.NewWriter(dir)
	if err != nil {
		return err
	}
	path, err := w.WriteRun(journalRecord(d, recipients, delivered, runErr))
	if err != nil {
		return err
	}
	logx.Infof("newsdigest: journal written to %s", path)
	return nil
}

func journalRecord(d *digest.Digest, recipients, delivered []string, runErr error) *journal.RunRecord {
	rec := &journal.RunRecord{Mode: journalMode, Success: runErr == nil}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}
	for _, r := range d.Readings {
		rec.Articles = append(rec.Articles, journal.ArticleOp{
			Source:  r.Article.Source,
			Title:   r.Article.Title,
			URL:     r.Article.URL,
			Studied: r.Studied,
		})
	}
	ok := make(map[string]bool, len(delivered))
	for _, id := range delivered {
		ok[id] = true
	}
	for _, id := range recipients {
		rec.Recipients = append(rec.Recipients, journal.Delivery{UserID: id, Delivered: ok[id]})
	}
	return rec
}
