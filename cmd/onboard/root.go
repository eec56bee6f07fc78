package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammadpnp/roster-onboarding/internal/bootstrap"
	"github.com/mohammadpnp/roster-onboarding/internal/config"
	"github.com/mohammadpnp/roster-onboarding/internal/logging"
)

type options struct {
	filePath   string
	text       string
	exportPath string
}

func rootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create student accounts from a pasted or uploaded roster",
		Long: `Create student accounts from free-form text.

Names are extracted from the input, shown for review and correction, then one
account is created per student. Failed accounts can be retried and the
credentials of created accounts exported as a spreadsheet.

Examples:
  # Type or paste names interactively
  onboard

  # Read names from a file and save the credentials
  onboard --file class.csv --export credentials.xlsx`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.DefaultEnvFiles...)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

			comps := bootstrap.NewComponents(cfg, log)
			s := &terminalSession{
				wizard: comps.NewWizard(cmd.Context()),
				files:  comps.Files,
				out:    cmd.OutOrStdout(),
				opts:   opts,
			}
			return s.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "Read the roster from a file (txt, csv, xlsx, ...)")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Use this text as the roster")
	cmd.Flags().StringVarP(&opts.exportPath, "export", "o", "", "Write the credential workbook to this path")
	cmd.MarkFlagsMutuallyExclusive("file", "text")

	return cmd
}
