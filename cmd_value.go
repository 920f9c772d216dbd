package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/report"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type valueOptions struct {
	in       string
	out      string
	extended bool
	top      int
	screen   bool
	html     string
}

func newValueCmd(rt *cliEnv) *cobra.Command {
	opts := valueOptions{}

	cmd := &cobra.Command{
		Use:   "value",
		Short: "Value a fundamentals CSV offline and print the leaderboards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.value(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.in, "in", "", "Fundamentals CSV exported from the screener (required)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the ranked universe to this CSV")
	cmd.Flags().BoolVar(&opts.extended, "extended", false, "Include per-method values in the CSV")
	cmd.Flags().IntVar(&opts.top, "top", 0, "Leaderboard size (default from configuration)")
	cmd.Flags().BoolVar(&opts.screen, "screen", false, "Apply the sales and operating profit screens")
	cmd.Flags().StringVar(&opts.html, "html", "", "Also write the leaderboards as an HTML page")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (rt *cliEnv) value(ctx context.Context, opts valueOptions) error {
	result, err := rt.valueFile(ctx, opts.in)
	if err != nil {
		return err
	}
	ranked := engine.Rank(result.Records)

	if opts.out != "" {
		if err := writeFile(opts.out, func(f *os.File) error {
			return tabular.WriteExport(f, ranked, opts.extended)
		}); err != nil {
			return err
		}
	}

	top := opts.top
	if top <= 0 {
		top = rt.unified.Engine.LeaderboardSize
	}
	var nonSME, sme *engine.ScreenThresholds
	if opts.screen {
		nonSME, sme = rt.screens()
	}
	md := report.LeaderboardSet("", result.Records, top, nonSME, sme)

	if opts.html != "" {
		page, err := report.Page(opts.in, md)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.html, []byte(page), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.html, err)
		}
	}

	return report.Terminal(os.Stdout, md)
}

// valueFile decodes and values one universe file.
func (rt *cliEnv) valueFile(ctx context.Context, path string) (*engine.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe: %w", err)
	}
	defer f.Close()

	table, err := tabular.ReadUniverse(f)
	if err != nil {
		return nil, err
	}

	result, err := engine.New(rt.engineOptions(), nil).Value(ctx, table.Records)
	if err != nil {
		return nil, err
	}

	var samples []error
	for _, failure := range result.Failures {
		if len(samples) == 5 {
			break
		}
		samples = append(samples, failure)
	}
	logrus.WithFields(logrus.Fields{
		"component":    "CLI",
		"file":         path,
		"rows":         result.Summary.Rows,
		"fully_valued": result.Summary.FullyValued,
		"absent_final": result.Summary.AbsentFinalPrice,
		"skipped":      table.Skipped,
	}).Info(shared.SummarizeRowFailures(result.Summary.Rows-result.Summary.Failures, result.Summary.Failures, samples))

	return result, nil
}

func newPortfolioCmd(rt *cliEnv) *cobra.Command {
	var universePath, holdingsPath, out string

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Review a holdings CSV against a fundamentals CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt.valueFile(cmd.Context(), universePath)
			if err != nil {
				return err
			}

			f, err := os.Open(holdingsPath)
			if err != nil {
				return fmt.Errorf("failed to open holdings: %w", err)
			}
			defer f.Close()
			holdings, err := tabular.ReadHoldings(f)
			if err != nil {
				return err
			}

			reviewer := services.NewPortfolioService(nil, nil, nil)
			rows := reviewer.ReviewHoldings(holdings, result.Records)

			if out != "" {
				if err := writeFile(out, func(f *os.File) error {
					return tabular.WritePortfolio(f, rows)
				}); err != nil {
					return err
				}
			}
			return report.Terminal(os.Stdout, report.PortfolioTable(rows))
		},
	}
	cmd.Flags().StringVar(&universePath, "universe", "", "Fundamentals CSV (required)")
	cmd.Flags().StringVar(&holdingsPath, "holdings", "", "Holdings CSV with Instrument, Qty., Avg. cost, LTP (required)")
	cmd.Flags().StringVar(&out, "out", "", "Write the review to this CSV")
	_ = cmd.MarkFlagRequired("universe")
	_ = cmd.MarkFlagRequired("holdings")
	return cmd
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	logrus.WithField("component", "CLI").Infof("Wrote %s", path)
	return nil
}
