package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/config"
)

// ConfigCmd handles the config file.
type ConfigCmd struct{}

// ConfigInitInput holds input for writing the default config file.
type ConfigInitInput struct {
	Path  string
	Force bool
}

// Init writes the default configuration. An existing file is kept unless
// Force is set.
func (c ConfigCmd) Init(in ConfigInitInput) error {
	path, err := config.Path(in.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !in.Force {
		return fmt.Errorf("config file already exists at %s; pass --force to overwrite it", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check the config file: %w", err)
	}

	dataDir, err := config.DefaultDataDir()
	if err != nil {
		return err
	}
	if err := config.Default(dataDir).Write(path); err != nil {
		return fmt.Errorf("failed to write the config file: %w", err)
	}
	pterm.Success.Printf("Wrote default config to %s\n", path)
	return nil
}

// Path prints where the config file is read from.
func (c ConfigCmd) Path(override string) error {
	path, err := config.Path(override)
	if err != nil {
		return err
	}
	pterm.Println(path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		pterm.Info.Println("The file does not exist yet; defaults are in effect. Create it with 'casetrack config init'.")
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	return ConfigCmd{}.Init(ConfigInitInput{Path: path, Force: force})
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	return ConfigCmd{}.Path(path)
}
