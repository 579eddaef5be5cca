package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/finora/finora/pkg/obligation"
	"github.com/finora/finora/pkg/recurrence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	flagFile string
	flagDate string
	flagDays int
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Print the upcoming payments of a TOML file of obligations",
	Long: `Reads subscriptions and installment plans from a TOML file and prints the payments
falling within the next N days. No database is needed.

  [[subscription]]
  description = "Streaming"
  amount = "15.99"
  start_date = "2025-01-10"
  frequency = "monthly"

  [[installment]]
  description = "Laptop"
  amount = "250"
  dates = ["2025-01-07", "2025-02-07"]`,
	RunE: runProject,
}

func init() {
	projectCmd.Flags().StringVarP(&flagFile, "file", "f", "", "TOML file with obligations")
	projectCmd.Flags().StringVar(&flagDate, "date", "", "Reference date YYYY-MM-DD (default today)")
	projectCmd.Flags().IntVarP(&flagDays, "days", "n", 30, "Horizon in days")
	_ = projectCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(projectCmd)
}

type obligationFile struct {
	Subscriptions []subscriptionEntry `toml:"subscription"`
	Installments  []installmentEntry  `toml:"installment"`
}

type entry struct {
	Id          string          `toml:"id"`
	Description string          `toml:"description"`
	Amount      decimal.Decimal `toml:"amount"`
	Active      *bool           `toml:"active"`
	Category    string          `toml:"category"`
}

type subscriptionEntry struct {
	entry
	StartDate fileDate             `toml:"start_date"`
	Frequency recurrence.Frequency `toml:"frequency"`
}

type installmentEntry struct {
	entry
	Dates []fileDate `toml:"dates"`
}

// fileDate takes both "2025-01-10" and an unquoted TOML date, which the decoder hands over as a
// timestamp.
type fileDate struct {
	recurrence.CalendarDate
}

func (d *fileDate) UnmarshalText(text []byte) error {
	parsed, err := obligation.ParseWireDate(string(text))
	if err != nil {
		return err
	}
	d.CalendarDate = parsed
	return nil
}

func (s subscriptionEntry) kind() (recurrence.Kind, error) {
	if s.StartDate.IsZero() {
		return nil, fmt.Errorf("%s: subscription requires a start_date", s.Description)
	}
	if !s.Frequency.IsValid() {
		return nil, fmt.Errorf("%s: unknown frequency %q", s.Description, s.Frequency)
	}
	return recurrence.Subscription{StartDate: s.StartDate.CalendarDate, Frequency: s.Frequency}, nil
}

func (i installmentEntry) kind() (recurrence.Kind, error) {
	if len(i.Dates) == 0 {
		return nil, fmt.Errorf("%s: installment requires at least one date", i.Description)
	}
	dates := make([]recurrence.CalendarDate, 0, len(i.Dates))
	for _, d := range i.Dates {
		dates = append(dates, d.CalendarDate)
	}
	return recurrence.Installment{ScheduledDates: dates}, nil
}

func (e entry) toObligation(kindOf func() (recurrence.Kind, error)) (recurrence.Obligation, error) {
	if e.Description == "" {
		return recurrence.Obligation{}, errors.New("description is required")
	}
	kind, err := kindOf()
	if err != nil {
		return recurrence.Obligation{}, err
	}
	id := uuid.New()
	if e.Id != "" {
		parsed, err := uuid.Parse(e.Id)
		if err != nil {
			return recurrence.Obligation{}, fmt.Errorf("%s: invalid id: %w", e.Description, err)
		}
		id = parsed
	}
	o := recurrence.Obligation{
		ID:          id,
		Description: e.Description,
		Amount:      e.Amount,
		Active:      e.Active == nil || *e.Active,
		Kind:        kind,
	}
	if e.Category != "" {
		o.Category = &recurrence.CategoryRef{Name: e.Category}
	}
	return o, nil
}

// loadObligationFile reads subscriptions first, then installments, keeping file order within each.
func loadObligationFile(path string) ([]recurrence.Obligation, error) {
	var file obligationFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}

	obligations := make([]recurrence.Obligation, 0, len(file.Subscriptions)+len(file.Installments))
	for _, s := range file.Subscriptions {
		o, err := s.toObligation(s.kind)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	for _, i := range file.Installments {
		o, err := i.toObligation(i.kind)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	return obligations, nil
}

func runProject(cmd *cobra.Command, _ []string) error {
	obligations, err := loadObligationFile(flagFile)
	if err != nil {
		return err
	}

	reference := recurrence.DateOf(time.Now())
	if flagDate != "" {
		reference, err = recurrence.ParseCalendarDate(flagDate)
		if err != nil {
			return err
		}
	}

	window := recurrence.Window{ReferenceDate: reference, HorizonDays: flagDays}
	projection, err := recurrence.Project(obligations, window)
	if err != nil {
		return err
	}
	return renderProjection(cmd.OutOrStdout(), window, projection)
}

func renderProjection(out io.Writer, window recurrence.Window, projection recurrence.Projection) error {
	fmt.Fprintf(out, "Upcoming payments %s .. %s (%d days)\n\n", window.ReferenceDate, window.End(), window.HorizonDays)
	if projection.IsEmpty() {
		fmt.Fprintln(out, "Nothing upcoming.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tIN\tDESCRIPTION\tCATEGORY\tAMOUNT\t")
	for _, item := range projection.Items {
		category := "-"
		if item.Obligation.Category != nil {
			category = item.Obligation.Category.Name
		}
		fmt.Fprintf(tw, "%s\t%dd\t%s\t%s\t%s\t\n",
			item.NextOccurrence,
			window.ReferenceDate.DaysBetween(item.NextOccurrence),
			item.Obligation.Description,
			category,
			item.Obligation.Amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\t\n", projection.TotalAmount.StringFixed(2))
	return tw.Flush()
}
