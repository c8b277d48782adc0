package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/selftest"
	"github.com/casetrack/cli/internal/uscis"
	"github.com/casetrack/cli/pkg/util"
)

// SelfTestService runs and reports on the daily API self-test.
type SelfTestService interface {
	TestConnection(ctx context.Context) uscis.ConnectionResult
	RunDailyTest(ctx context.Context) (selftest.Outcome, error)
	Logs(ctx context.Context) ([]selftest.TestLog, error)
}

// SelfTestCmd handles self-test operations.
type SelfTestCmd struct {
	harness   SelfTestService
	configure func(ctx context.Context) error
}

// SelfTestReportInput holds input for the readiness report.
type SelfTestReportInput struct {
	Output string
}

type selfTestReport struct {
	selftest.Readiness
	Logs []selftest.TestLog `json:"logs"`
}

// Run executes the probe battery once and records it.
func (c SelfTestCmd) Run(ctx context.Context) error {
	if err := c.configure(ctx); err != nil {
		return err
	}

	pterm.Info.Println("Running API self-test...")
	out, err := c.harness.RunDailyTest(ctx)
	if err != nil {
		return err
	}
	if !out.Recorded() {
		pterm.Error.Println(out.Connection.Message)
		return fmt.Errorf("connection test failed; nothing was recorded")
	}

	res := out.Log.QueryResults
	pterm.Success.Printf("Recorded self-test for %s: %d succeeded, %d failed\n", out.Log.Date, res.Success, res.Error)
	printResponseCodes(res.ResponseCodes)
	return nil
}

// Connection checks only the token exchange.
func (c SelfTestCmd) Connection(ctx context.Context) error {
	if err := c.configure(ctx); err != nil {
		return err
	}
	res := c.harness.TestConnection(ctx)
	if !res.Success {
		pterm.Error.Println(res.Message)
		return fmt.Errorf("connection test failed")
	}
	pterm.Success.Println(res.Message)
	return nil
}

// Report prints the recorded runs and the production readiness verdict.
func (c SelfTestCmd) Report(ctx context.Context, in SelfTestReportInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	logs, err := c.harness.Logs(ctx)
	if err != nil {
		return err
	}
	r := selftest.Evaluate(logs)

	if in.Output == "json" {
		if logs == nil {
			logs = []selftest.TestLog{}
		}
		return util.PrintPrettyJSON(selfTestReport{Readiness: r, Logs: logs})
	}

	if len(logs) == 0 {
		pterm.Info.Println("No self-test runs recorded yet")
	} else {
		rows := pterm.TableData{{"Date", "Success", "Error", "Total", "200", "400", "401", "404", "429", "503"}}
		for _, l := range logs {
			q := l.QueryResults
			row := []string{l.Date, strconv.Itoa(q.Success), strconv.Itoa(q.Error), strconv.Itoa(q.Total)}
			for _, code := range selftest.TrackedCodes {
				row = append(row, strconv.Itoa(q.ResponseCodes.Get(code)))
			}
			rows = append(rows, row)
		}
		PrintTableNoPad(rows, true)
	}

	pterm.Println()
	rows := pterm.TableData{
		{"Requirement", "Status"},
		{fmt.Sprintf("Tested on %d distinct days", selftest.RequiredDays), fmt.Sprintf("%s (%d/%d)", util.YesNo(r.HasFiveDays), r.TotalDays, selftest.RequiredDays)},
		{"Run with both successes and errors", util.YesNo(r.HasSuccessAndErrors)},
	}
	last := "-"
	if r.LastTestDate != nil {
		last = *r.LastTestDate
	}
	rows = append(rows, []string{"Last test", last})
	PrintTableNoPad(rows, true)

	if r.HasFiveDays && r.HasSuccessAndErrors {
		pterm.Success.Println("Ready to request production access")
	}
	return nil
}

func printResponseCodes(codes selftest.ResponseCodes) {
	rows := pterm.TableData{{"Response", "Count"}}
	for _, code := range selftest.TrackedCodes {
		rows = append(rows, []string{strconv.Itoa(code), strconv.Itoa(codes.Get(code))})
	}
	PrintTableNoPad(rows, true)
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Exercise the USCIS sandbox API and track production readiness",
	Long: `Production access to the USCIS Case Status API requires sandbox traffic on
several distinct days that includes both successful and failing requests.
The self-test sends a fixed battery of requests that produces 200, 400, 401,
404 and 503 responses and records the tally for the day.`,
}

var selftestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the probe battery now and record the result",
	Args:  cobra.NoArgs,
	RunE:  runSelftestRun,
}

var selftestReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recorded runs and production readiness",
	Args:  cobra.NoArgs,
	RunE:  runSelftestReport,
}

var selftestConnectionCmd = &cobra.Command{
	Use:   "connection",
	Short: "Check that a token can be obtained",
	Args:  cobra.NoArgs,
	RunE:  runSelftestConnection,
}

func init() {
	selftestCmd.AddCommand(selftestRunCmd)
	selftestCmd.AddCommand(selftestReportCmd)
	selftestCmd.AddCommand(selftestConnectionCmd)

	selftestReportCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func newSelfTestCmd(cmd *cobra.Command) (SelfTestCmd, error) {
	a, err := getApp(cmd)
	if err != nil {
		return SelfTestCmd{}, err
	}
	return SelfTestCmd{harness: a.harness, configure: a.configureClient}, nil
}

func runSelftestRun(cmd *cobra.Command, args []string) error {
	c, err := newSelfTestCmd(cmd)
	if err != nil {
		return err
	}
	return c.Run(cmd.Context())
}

func runSelftestReport(cmd *cobra.Command, args []string) error {
	c, err := newSelfTestCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return c.Report(cmd.Context(), SelfTestReportInput{Output: output})
}

func runSelftestConnection(cmd *cobra.Command, args []string) error {
	c, err := newSelfTestCmd(cmd)
	if err != nil {
		return err
	}
	return c.Connection(cmd.Context())
}
