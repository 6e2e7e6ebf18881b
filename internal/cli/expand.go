package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"recurcal/internal/agenda"
	"recurcal/internal/config"
	"recurcal/internal/ics"
	"recurcal/internal/model"
	"recurcal/internal/recur"
)

// ExpandOptions holds flags of the expand command.
type ExpandOptions struct {
	From   string
	To     string
	Format string

	// Ad-hoc rule; when RRule is set, configured rules and feeds are ignored.
	RRule    string
	Start    string
	Duration string
	Timezone string
	Summary  string
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print occurrences in a window",
		Long: `Expand configured rules and feeds, or a single ad-hoc rule given with
--rrule and --start, and print the occurrences whose start falls in
[--from, --to). Both bounds are RFC 3339; they default to now and now
plus horizon_days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return runExpand(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "window start (RFC 3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "window end, exclusive (RFC 3339)")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json|ics)")
	cmd.Flags().StringVar(&opts.RRule, "rrule", "", "expand this RRULE instead of the config")
	cmd.Flags().StringVar(&opts.Start, "start", "", "anchor wall time for --rrule, e.g. 2023-09-18T08:30")
	cmd.Flags().StringVar(&opts.Duration, "duration", "", "occurrence length for --rrule, e.g. 1h")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "zone for --rrule (default: config timezone)")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "summary for --rrule")

	return cmd
}

func runExpand(cmd *cobra.Command, rootOpts *RootOptions, opts *ExpandOptions) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}

	var fetcher agenda.Fetcher
	if opts.RRule != "" {
		adhoc := *cfg
		adhoc.ICS = nil
		adhoc.Rules = []config.RuleConfig{{
			ID:       "adhoc",
			Summary:  opts.Summary,
			Start:    opts.Start,
			Duration: opts.Duration,
			Timezone: opts.Timezone,
			RRule:    opts.RRule,
		}}
		cfg = &adhoc
	} else {
		fetcher = ics.NewFetcher(cfg.CacheDir, nil)
	}

	a, err := agenda.New(cfg, fetcher)
	if err != nil {
		return err
	}
	if err := a.Refresh(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	w, err := parseWindow(a.DefaultWindow(), opts.From, opts.To, cfg.HorizonDays)
	if err != nil {
		return err
	}
	res, err := a.Occurrences(w)
	if err != nil {
		return err
	}
	for _, uid := range res.TruncatedEvents {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s truncated at %d occurrences\n", uid, cfg.MaxOccurrences)
	}

	return writeOccurrences(cmd.OutOrStdout(), opts.Format, res.Occurrences, a.Now())
}

// parseWindow applies --from/--to over the default window. A lone --from
// keeps the horizon length.
func parseWindow(def recur.Window, from, to string, horizonDays int) (recur.Window, error) {
	w := def
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return recur.Window{}, fmt.Errorf("%w: --from: %v", recur.ErrInvalidWindow, err)
		}
		w.From = t
		w.To = t.AddDate(0, 0, horizonDays)
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return recur.Window{}, fmt.Errorf("%w: --to: %v", recur.ErrInvalidWindow, err)
		}
		w.To = t
	}
	return w, w.Validate()
}

func writeOccurrences(out io.Writer, format string, occ []model.Occurrence, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(occ)
	case "ics":
		_, err := io.WriteString(out, ics.EncodeOccurrences(occ, now))
		return err
	default:
		for _, o := range occ {
			if _, err := fmt.Fprintf(out, "%s  %s  %s  [%s/%s]\n",
				o.Start.Format("Mon 2006-01-02 15:04 MST"),
				o.End.Format("15:04 MST"),
				o.Summary, o.SourceID, o.UID,
			); err != nil {
				return err
			}
		}
		return nil
	}
}
