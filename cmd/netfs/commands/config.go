package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/pkg/config"
)

var initForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage netfs configuration files.

Subcommands:
  init  Create a configuration file with defaults and comments
  show  Display the effective configuration`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	// Loading would fail on the very file this command repairs.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults, file and environment
(NETFS_<SECTION>_<KEY>) have been merged. Passwords are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	var (
		path string
		err  error
	)
	if cfgFile != "" {
		path = cfgFile
		err = config.InitConfigToPath(cfgFile, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(w, "\nNext steps:")
	_, _ = fmt.Fprintln(w, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintln(w, "  2. Try it with: netfs ls tnfs://<server>/")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	shown := *cfg
	if shown.TNFS.Password != "" {
		shown.TNFS.Password = "********"
	}
	if s3 := shown.Backends.S3; s3 != nil {
		masked := make(map[string]any, len(s3))
		for k, v := range s3 {
			masked[k] = v
		}
		if _, ok := masked["secret_access_key"]; ok {
			masked["secret_access_key"] = "********"
		}
		shown.Backends.S3 = masked
	}

	data, err := config.WriteYAML(&shown)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
