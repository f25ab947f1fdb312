package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arked [database]",
	Short: "arked is a batch editor for languoid records",
	Long: `arked opens a database table of languoid records in a spreadsheet-like
terminal grid. Edits are validated as you type, batched into an undo
history, and written back explicitly with Ctrl+S.

Examples:
  arked glottolog.db
  arked glottolog -h db.example.org -U editor
  arked glottolog.db --import newdata.csv --mapping aliases.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArked,
}

var (
	flagHost     string
	flagPort     string
	flagUsername string
	flagPassword string
	flagTable    string
	flagMapping  string
	flagImport   string
	flagVim      bool
)

func init() {
	rootCmd.Flags().BoolP("help", "", false, "help for arked")
	rootCmd.Flags().StringVarP(&flagHost, "host", "h", "", "Database host")
	rootCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Database port")
	rootCmd.Flags().StringVarP(&flagUsername, "username", "U", "", "Database username")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "W", "", "Database password")
	rootCmd.Flags().StringVarP(&flagTable, "table", "t", "", "Table to edit (default \"languoid\")")
	rootCmd.Flags().StringVarP(&flagMapping, "mapping", "m", "", "YAML file of import header aliases")
	rootCmd.Flags().StringVarP(&flagImport, "import", "i", "", "CSV/TSV file to import on startup")
	rootCmd.Flags().BoolVar(&flagVim, "vim", false, "Enable vim-style keybindings")
}

func runArked(cmd *cobra.Command, args []string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	if len(args) >= 1 {
		config.Database = args[0]
	}
	if flagHost != "" {
		config.Host = flagHost
	}
	if flagPort != "" {
		config.Port = flagPort
	}
	if flagUsername != "" {
		config.Username = flagUsername
	}
	if flagPassword != "" {
		config.Password = flagPassword
	}
	if flagTable != "" {
		config.Table = flagTable
	}
	if flagMapping != "" {
		config.MappingFile = flagMapping
	}
	config.ImportFile = flagImport
	if flagVim {
		config.VimMode = true
	}

	if config.Database == "" {
		return fmt.Errorf("must specify a database (file path or database name)")
	}

	settings, err := LoadSettings()
	if err != nil {
		return err
	}

	if !settings.FirstRunComplete {
		settings.TelemetryEnabled = promptTelemetry()
		settings.FirstRunComplete = true
		if err := SaveSettings(settings); err != nil {
			return err
		}
	}

	InitBreadcrumbs(100)

	if settings.TelemetryEnabled {
		if dsn := os.Getenv("ARKED_SENTRY_DSN"); dsn != "" {
			if err := InitSentry(dsn); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			defer FlushAndShutdown()
		}
	}

	return runEditor(config, settings)
}

// promptTelemetry asks once, on first run, whether to send crash reports.
func promptTelemetry() bool {
	fmt.Print("Send anonymous crash reports to help improve arked? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
