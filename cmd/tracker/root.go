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
	"feishu-assistant/internal/svc"
	"feishu-assistant/internal/tracker"
	"feishu-assistant/pkg/journal"
	"feishu-assistant/pkg/markethours"
)

type flags struct {
	configFile string
	auto       bool
	market     string
	all        bool
	force      bool
	user       string
	journalDir string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Value holdings and notify noteworthy changes",
		Long: `Evaluates every position in scope with the intrinsic value model and sends
each user a card listing the positions whose margin, price or recommendation
moved past the configured thresholds.

Without flags only markets trading right now are covered.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			return run(cmd.Context(), f.configFile, f.journalDir, opts)
		},
	}
	cmd.Flags().StringVarP(&f.configFile, "config", "f", "etc/assistant.yaml", "the config file")
	cmd.Flags().BoolVar(&f.auto, "auto", false, "cover the markets open now (default)")
	cmd.Flags().StringVar(&f.market, "market", "", "cover one market: US, HK or CN")
	cmd.Flags().BoolVar(&f.all, "all", false, "cover every market")
	cmd.Flags().BoolVar(&f.force, "force", false, "notify every evaluated position")
	cmd.Flags().StringVar(&f.user, "user", "", "only this user's positions")
	cmd.Flags().StringVar(&f.journalDir, "journal", "", "write a JSON record of the run into this directory")
	cmd.MarkFlagsMutuallyExclusive("auto", "market", "all")
	return cmd
}

func (f flags) options() (tracker.Options, error) {
	opts := tracker.Options{Mode: tracker.ModeAuto, Force: f.force, UserID: strings.TrimSpace(f.user)}
	switch {
	case f.all:
		opts.Mode = tracker.ModeAll
	case f.market != "":
		m, ok := markethours.ParseMarket(f.market)
		if !ok {
			return opts, fmt.Errorf("unknown market %q, want US, HK or CN", f.market)
		}
		opts.Mode, opts.Market = tracker.ModeMarket, m
	}
	return opts, nil
}

func run(ctx context.Context, configFile, journalDir string, opts tracker.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logx.MustSetup(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	svcCtx, err := svc.Build(ctx, *cfg)
	if err != nil {
		return err
	}
	if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
		return errors.New("feishu app credentials are required to send notifications")
	}

	sum, err := svcCtx.Tracker.Run(ctx, opts)
	logx.Infof("tracker: mode=%s markets=%v users=%d evaluated=%d failed=%d notified=%d skipped=%d",
		opts.Mode, sum.Markets, sum.Users, sum.Evaluated, sum.Failed, sum.Notified, sum.Skipped)
	if journalDir != "" {
		if jerr := writeJournal(journalDir, opts, sum, err); jerr != nil {
			logx.Errorf("tracker: journal: %v", jerr)
		}
	}
	return err
}

func writeJournal(dir string, opts tracker.Options, sum tracker.Summary, runErr error) error {
	w, err := journal.NewWriter(dir)
	if err != nil {
		return err
	}
	path, err := w.WriteRun(journalRecord(opts, sum, runErr))
	if err != nil {
		return err
	}
	logx.Infof("tracker: journal written to %s", path)
	return nil
}

func journalRecord(opts tracker.Options, sum tracker.Summary, runErr error) *journal.RunRecord {
	rec := &journal.RunRecord{Mode: string(opts.Mode), Force: opts.Force, Success: runErr == nil}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}
	for _, m := range sum.Markets {
		rec.Markets = append(rec.Markets, string(m))
	}
	delivered := make(map[string]bool, len(sum.Delivered))
	for _, id := range sum.Delivered {
		delivered[id] = true
	}
	for _, r := range sum.Reports {
		u := journal.UserRecord{UserID: r.UserID, Delivered: delivered[r.UserID], Failed: r.Failed}
		for _, it := range r.Items {
			u.Positions = append(u.Positions, journal.PositionOp{
				Code:           it.Result.Code,
				Name:           it.Result.Name,
				Price:          it.Result.Price,
				Intrinsic:      it.Result.Intrinsic,
				Margin:         it.Result.Margin,
				Recommendation: string(it.Result.Recommendation),
				Noteworthy:     it.Noteworthy,
			})
		}
		rec.Users = append(rec.Users, u)
	}
	return rec
}
