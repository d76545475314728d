package cmd

import (
	"fmt"

	"github.com/CMPEQ0/lab-mark-api/config"
	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var manualAuth bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Sheets",
	Long: `auth runs the OAuth consent flow for the Google Sheets backend and stores
the resulting token at google.token. By default it waits for the browser
redirect on a loopback port; --manual asks for the code instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SpreadsheetBackend != config.BackendGoogle {
			return fmt.Errorf("auth is only needed for the %s backend", config.BackendGoogle)
		}
		store := credentialStore()

		var err error
		if manualAuth {
			err = store.AuthorizeManual(cmd.Context(), promptCode)
		} else {
			err = store.AuthorizeLoopback(cmd.Context(), func(authURL string) {
				fmt.Printf("Open this link in your browser to grant access:\n\n%s\n\n", authURL)
			})
		}
		if err != nil {
			return err
		}
		log.Info().Str("token", store.TokenFile).Msg("Google token saved")
		return nil
	},
}

func promptCode(authURL string) (string, error) {
	fmt.Printf("Open this link in your browser to grant access:\n\n%s\n\n", authURL)

	var code string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Authorization code").
				Description("Paste the code or the whole address you were redirected to").
				Value(&code).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("a code is required")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}
	return code, nil
}

func init() {
	authCmd.Flags().BoolVar(&manualAuth, "manual", false, "paste the authorization code instead of listening for the redirect")
	rootCmd.AddCommand(authCmd)
}
