package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bitespeed-identity/internal/config"
	"bitespeed-identity/internal/models"
	"bitespeed-identity/internal/service"
)

func newReconcileCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Record one contact sighting and print the record it resolved to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			phone, _ := cmd.Flags().GetString("phone")

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			contact, err := a.service.Reconcile(cmd.Context(), email, phone)
			if err != nil {
				return err
			}
			return printJSON(cmd, models.ReconcileResponse{Message: "Contact created", Contact: contact})
		},
	}
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("phone", "", "phone number")
	return cmd
}

func newIdentifyCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Print the consolidated view of the cluster matching an email or phone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			phone, _ := cmd.Flags().GetString("phone")

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.service.Identify(cmd.Context(), models.StringPtr(email), models.StringPtr(phone))
			if errors.Is(err, service.ErrNotFound) {
				return fmt.Errorf("no contact matches email %q or phone %q", email, phone)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, models.IdentifyResponse{Contact: *view})
		},
	}
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("phone", "", "phone number")
	return cmd
}

func printJSON(cmd *cobra.Command, body any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
