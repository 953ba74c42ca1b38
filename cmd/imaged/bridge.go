package main

import (
	"github.com/spf13/cobra"

	"imaged/internal/bridge"
	"imaged/internal/logging"
)

func newBridgeCmd(opts *rootOptions) *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve MCP tools over stdio, backed by a running imaged API",
		Long: "Reads newline-delimited JSON-RPC 2.0 requests on stdin and answers on stdout.\n" +
			"Logs go to stderr. The API address comes from --api, API_BASE_URL or bridge.api_base_url.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.Bridge.APIBaseURL = apiURL
			}
			log, closer, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()
			client := bridge.NewClient(cfg.Bridge.APIBaseURL, cfg.Bridge.RequestTimeout.Duration)
			log.Info().Str("api", cfg.Bridge.APIBaseURL).Msg("bridge ready")
			return bridge.NewServer(client, version, log).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "Base URL of the imaged HTTP API")
	return cmd
}
