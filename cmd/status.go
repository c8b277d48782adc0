package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/casestatus"
	"github.com/casetrack/cli/internal/uscis"
	"github.com/casetrack/cli/pkg/util"
)

// caseStatusPageURL is the public USCIS case status lookup.
const caseStatusPageURL = "https://egov.uscis.gov/"

// CaseResolver resolves a receipt number to its current status.
type CaseResolver interface {
	Resolve(ctx context.Context, receipt string) (casestatus.CaseStatus, error)
}

// QueryHistory remembers the last lookup.
type QueryHistory interface {
	Save(ctx context.Context, receipt string, status casestatus.CaseStatus) error
	Receipt(ctx context.Context) (string, bool, error)
}

// StatusCmd handles case status lookups.
type StatusCmd struct {
	resolver CaseResolver
	history  QueryHistory
	openURL  func(string) error
}

// StatusInput holds input for a status lookup.
type StatusInput struct {
	Receipt string
	Output  string
	Open    bool
}

type statusResult struct {
	Receipt string `json:"receiptNumber"`
	casestatus.CaseStatus
	Progress []casestatus.Step `json:"progress,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status [receipt]",
	Short: "Look up the status of a USCIS case",
	Long: `Look up the status of a USCIS case by its 13 character receipt number
(three letters followed by ten digits, e.g. IOE1234567890).

Without an argument the last receipt looked up is queried again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
	statusCmd.Flags().Bool("open", false, "Open the USCIS case status page in your browser")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := getApp(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	open, _ := cmd.Flags().GetBool("open")

	in := StatusInput{Output: output, Open: open}
	if len(args) > 0 {
		in.Receipt = args[0]
	}
	c := StatusCmd{resolver: a.resolver, history: a.history, openURL: browser.OpenURL}
	return c.Lookup(cmd.Context(), in)
}

// Lookup resolves the case and prints it.
func (c StatusCmd) Lookup(ctx context.Context, in StatusInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	receipt := strings.ToUpper(strings.TrimSpace(in.Receipt))
	if receipt == "" {
		last, ok, err := c.history.Receipt(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no receipt number given and none looked up before")
		}
		receipt = last
	}

	status, err := c.resolver.Resolve(ctx, receipt)
	if err != nil {
		if in.Output != "json" {
			printLookupError(err)
		}
		return err
	}
	if err := c.history.Save(ctx, receipt, status); err != nil {
		pterm.Warning.Printf("Could not remember this lookup: %v\n", err)
	}

	steps, onTrack := casestatus.Progress(status.Status)
	if in.Output == "json" {
		res := statusResult{Receipt: receipt, CaseStatus: status}
		if onTrack {
			res.Progress = steps
		}
		return util.PrintPrettyJSON(res)
	}

	rows := pterm.TableData{
		{"Property", "Value"},
		{"Receipt Number", receipt},
		{"Status", status.Status},
		{"Last Updated", status.Date},
	}
	if status.FormType != "" {
		rows = append(rows, []string{"Form", status.FormType})
	}
	PrintTableNoPad(rows, true)
	if status.Description != "" {
		pterm.Println()
		pterm.Println(status.Description)
	}
	if onTrack {
		printProgress(steps)
	}

	if in.Open {
		if err := c.openURL(caseStatusPageURL); err != nil {
			pterm.Warning.Printf("Could not open browser automatically. Please visit: %s\n", caseStatusPageURL)
		}
	}
	return nil
}

func printLookupError(err error) {
	switch {
	case errors.Is(err, uscis.ErrInvalidReceipt):
		pterm.Error.Println("Receipt numbers are three letters followed by ten digits, e.g. IOE1234567890.")
	case errors.Is(err, uscis.ErrNotConfigured):
		pterm.Error.Println("The USCIS API is enabled but no credentials are set. Run 'casetrack credentials set'.")
	case errors.Is(err, uscis.ErrCaseNotFound):
		pterm.Error.Println("USCIS has no case with that receipt number.")
	}
}

var (
	stepDone    = pterm.NewRGB(31, 163, 130)
	stepCurrent = pterm.NewRGB(36, 99, 235)
	stepPending = pterm.NewRGB(128, 128, 128)
)

func printProgress(steps []casestatus.Step) {
	pterm.Println()
	pterm.Println("  " + pterm.Bold.Sprint("Progress"))
	for _, s := range steps {
		rgb := stepPending
		label := s.Label
		switch {
		case s.Current:
			rgb = stepCurrent
			label = pterm.Bold.Sprint(label)
		case s.Done:
			rgb = stepDone
		}
		pterm.Printf("    %s %s\n", coloredDot(rgb), label)
	}
	pterm.Println()
}

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}
