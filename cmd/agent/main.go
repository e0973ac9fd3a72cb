package main

import (
	"log"
	"strings"

	"github.com/spf13/cobra"

	"enveye/internal/agent"
)

func main() {
	var (
		appFolder     string
		appType       string
		uploadURL     string
		extraServices string
		output        string
		label         string
	)

	rootCmd := &cobra.Command{
		Use:   "collector_agent",
		Short: "Collect an environment snapshot and optionally upload it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := agent.Options{
				AppFolder: appFolder,
				AppType:   appType,
				Output:    output,
				Label:     label,
				UploadURL: uploadURL,
			}
			for _, svc := range strings.Split(extraServices, ",") {
				if svc = strings.TrimSpace(svc); svc != "" {
					opts.ExtraServices = append(opts.ExtraServices, svc)
				}
			}
			_, err := agent.Run(cmd.Context(), opts)
			return err
		},
	}

	rootCmd.Flags().StringVar(&appFolder, "app-folder", "", "Path to the application folder")
	rootCmd.Flags().StringVar(&appType, "app-type", "", "Application type: desktop or web")
	rootCmd.Flags().StringVar(&uploadURL, "upload-url", "", "Optional: Upload URL")
	rootCmd.Flags().StringVar(&extraServices, "extra-services", "", "Comma-separated list of extra service names to check")
	rootCmd.Flags().StringVar(&output, "output", "", "Optional: Custom output filename for the snapshot")
	rootCmd.Flags().StringVar(&label, "label", "", "Optional: Label snapshot as good or faulty")
	_ = rootCmd.MarkFlagRequired("app-folder")
	_ = rootCmd.MarkFlagRequired("app-type")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("collector agent failed: %v", err)
	}
}
