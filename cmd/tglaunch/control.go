package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tglaunch/pkg/client"
	"tglaunch/pkg/types"
)

func newControlCommands(opts *options, getenv func(string) string) []*cobra.Command {
	type op func(*client.Client, context.Context) (types.StatusSnapshot, error)
	mk := func(use, short string, call op) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd, opts, getenv)
				if err != nil {
					return err
				}
				c := client.New(client.Config{BaseURL: "http://" + cfg.ControlAddr()})
				s, err := call(c, cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			},
		}
	}
	return []*cobra.Command{
		mk("status", "Show backend status", (*client.Client).Status),
		mk("start", "Start the backend", (*client.Client).Start),
		mk("stop", "Stop the backend", (*client.Client).Stop),
	}
}

func newTranslateCommand(opts *options, getenv func(string) string) *cobra.Command {
	var from, to string
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "translate TEXT...",
		Short:   "Translate text with the running backend",
		Example: "  tglaunch translate \"Hello, world\" --from en --to zh-TW",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, getenv)
			if err != nil {
				return err
			}
			c := client.New(client.Config{})
			out, err := c.Translate(cmd.Context(), cfg.ServerURL, types.TranslateRequest{
				Text:       strings.Join(args, " "),
				SourceLang: from,
				TargetLang: to,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Translation)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "en", "Source language")
	cmd.Flags().StringVar(&to, "to", "zh-TW", "Target language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full backend response")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
