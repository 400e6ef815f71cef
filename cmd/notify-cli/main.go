package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvusHold/changenotify/internal/version"
)

var (
	cfgFile   string
	apiURL    string
	apiToken  string
	verbose   bool
	outputFmt string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notify-cli",
	Short: "Customer change notification CLI",
	Long: `notify-cli manages the customer profile change notification service.
Inspect and update notification settings, edit customers, and preview
the change mails offline.`,
	SilenceUsage: true,
	Version:      version.String(),
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.notify-cli.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, json, yaml)")

	// Bind flags to viper
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("api_token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(customerCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".notify-cli")
	}

	// Environment variables
	viper.SetEnvPrefix("NOTIFY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		logVerbose("Using config file: %s", viper.ConfigFileUsed())
	}

	if apiURL == "" {
		apiURL = viper.GetString("api_url")
	}
	if apiToken == "" {
		apiToken = viper.GetString("api_token")
	}
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
}

func newClient() *Client {
	return &Client{BaseURL: strings.TrimRight(apiURL, "/"), Token: apiToken}
}

// Configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current Configuration:")
		fmt.Fprintf(out, "API URL: %s\n", apiURL)
		fmt.Fprintf(out, "API Token: %s\n", maskToken(apiToken))
		fmt.Fprintf(out, "Signing key: %s\n", maskToken(viper.GetString("signing_key")))
		if viper.ConfigFileUsed() != "" {
			fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
		}
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current flags to $HOME/.notify-cli.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set("api_url", apiURL)
		viper.Set("api_token", apiToken)
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path := fmt.Sprintf("%s/.notify-cli.yaml", home)
		if err := viper.WriteConfigAs(path); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func logVerbose(format string, args ...any) {
	if verbose {
		log.Printf("[VERBOSE] "+format, args...)
	}
}
