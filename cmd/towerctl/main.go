package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pilotgb/control-tower/internal/client"
)

var rootCmd = &cobra.Command{
	Use:   "towerctl",
	Short: "Control tower CLI",
	Long: `towerctl inspects initiatives and drives them through the delivery lifecycle
(INGESTION -> TRANSFORMATION -> ENRICHMENT -> VALIDATION -> VISUALIZATION -> DEPLOYMENT)
against a running control tower API.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TOWERCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("api", "http://localhost:4000", "control tower API base URL")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(initiativesCmd())
	rootCmd.AddCommand(overviewCmd())
}

func apiClient() *client.HTTPClient {
	return client.NewHTTPClient(viper.GetString("api"))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
