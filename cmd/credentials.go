package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/settings"
	"github.com/casetrack/cli/internal/uscis"
)

// CredentialStore reads and writes the settings record holding the API credentials.
type CredentialStore interface {
	Get(ctx context.Context) (settings.AppSettings, error)
	Save(ctx context.Context, s settings.AppSettings) error
}

// ConnectionTester checks credentials against the USCIS token endpoint.
type ConnectionTester interface {
	Configure(creds uscis.Credentials)
	TestConnection(ctx context.Context) uscis.ConnectionResult
}

// CredentialsCmd handles USCIS API credential operations.
type CredentialsCmd struct {
	store  CredentialStore
	tester ConnectionTester
}

// SetCredentialsInput holds input for storing API credentials.
type SetCredentialsInput struct {
	ClientID     string
	ClientSecret string
	Sandbox      bool
	Enable       bool
}

// Set stores the client credential pair. The secret goes to the OS keyring.
func (c CredentialsCmd) Set(ctx context.Context, in SetCredentialsInput) error {
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.ClientSecret = strings.TrimSpace(in.ClientSecret)
	if in.ClientID == "" {
		return fmt.Errorf("--client-id is required")
	}
	if in.ClientSecret == "" {
		return fmt.Errorf("--client-secret is required")
	}

	s, err := c.store.Get(ctx)
	if err != nil {
		return err
	}
	s.USCISClientID = in.ClientID
	s.USCISClientSecret = in.ClientSecret
	s.USCISSandboxMode = in.Sandbox
	if in.Enable {
		s.UseRealAPI = true
	}
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}

	env := "production"
	if in.Sandbox {
		env = "sandbox"
	}
	pterm.Success.Printf("Saved %s credentials for client %s\n", env, in.ClientID)
	if !s.UseRealAPI {
		pterm.Info.Println("Lookups still use mock data. Enable the API with 'casetrack settings set useRealApi true' or pass --enable.")
	}
	return nil
}

// Test performs a token exchange with the stored credentials.
func (c CredentialsCmd) Test(ctx context.Context) error {
	s, err := c.store.Get(ctx)
	if err != nil {
		return err
	}
	if s.HasCredentials() {
		c.tester.Configure(uscis.Credentials{
			ClientID:     s.USCISClientID,
			ClientSecret: s.USCISClientSecret,
			Sandbox:      s.USCISSandboxMode,
		})
	}

	res := c.tester.TestConnection(ctx)
	if !res.Success {
		pterm.Error.Println(res.Message)
		return fmt.Errorf("connection test failed")
	}
	pterm.Success.Println(res.Message)
	return nil
}

// Clear removes the stored credentials and turns the real API off.
func (c CredentialsCmd) Clear(ctx context.Context) error {
	s, err := c.store.Get(ctx)
	if err != nil {
		return err
	}
	if s.USCISClientID == "" && s.USCISClientSecret == "" {
		pterm.Info.Println("No credentials stored")
		return nil
	}

	// Dropping the id also drops its keyring entry.
	s.USCISClientSecret = ""
	s.USCISClientID = ""
	s.UseRealAPI = false
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}
	pterm.Success.Println("Cleared USCIS API credentials")
	return nil
}

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Manage USCIS Torch API credentials",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the API client id and secret",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsSet,
}

var credentialsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the stored credentials can obtain a token",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsTest,
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsClear,
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsTestCmd)
	credentialsCmd.AddCommand(credentialsClearCmd)

	credentialsSetCmd.Flags().String("client-id", "", "OAuth client id (required)")
	credentialsSetCmd.Flags().String("client-secret", "", "OAuth client secret (required)")
	credentialsSetCmd.Flags().Bool("sandbox", true, "Use the sandbox environment")
	credentialsSetCmd.Flags().Bool("enable", false, "Also switch lookups to the real API")
	_ = credentialsSetCmd.MarkFlagRequired("client-id")
	_ = credentialsSetCmd.MarkFlagRequired("client-secret")
}

func newCredentialsCmd(cmd *cobra.Command) (CredentialsCmd, error) {
	a, err := getApp(cmd)
	if err != nil {
		return CredentialsCmd{}, err
	}
	return CredentialsCmd{store: a.settings, tester: a.client}, nil
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	c, err := newCredentialsCmd(cmd)
	if err != nil {
		return err
	}
	clientID, _ := cmd.Flags().GetString("client-id")
	clientSecret, _ := cmd.Flags().GetString("client-secret")
	sandbox, _ := cmd.Flags().GetBool("sandbox")
	enable, _ := cmd.Flags().GetBool("enable")
	return c.Set(cmd.Context(), SetCredentialsInput{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Sandbox:      sandbox,
		Enable:       enable,
	})
}

func runCredentialsTest(cmd *cobra.Command, args []string) error {
	c, err := newCredentialsCmd(cmd)
	if err != nil {
		return err
	}
	return c.Test(cmd.Context())
}

func runCredentialsClear(cmd *cobra.Command, args []string) error {
	c, err := newCredentialsCmd(cmd)
	if err != nil {
		return err
	}
	return c.Clear(cmd.Context())
}
