package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/gbird/internal/app"
	"github.com/ent0n29/gbird/internal/reply"
)

func newSayCmd() *cobra.Command {
	var (
		audioOut string
		mode     string
		route    string
	)

	cmd := &cobra.Command{
		Use:   "say <transcript>",
		Short: "Generate one agent reply for a transcript",
		Long: `Run a transcript through reply generation with the current telemetry and
print the reply and its tone. The mission log is used as history but not
written to.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.OpsMode = mode
			}
			if route != "" {
				cfg.OpsRoute = route
			}
			ops := reply.Ops{Mode: cfg.OpsMode, Route: cfg.OpsRoute}
			if err := ops.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = res.Cleanup() }()

			transcript := strings.Join(args, " ")
			req := reply.NewAssembler(res.Simulator, res.Memory).Build(transcript, ops, nil)
			out, err := res.Responder.Generate(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Reply.Text)
			fmt.Fprintf(cmd.OutOrStdout(), "sfx: %s (%s)\n", out.Reply.SFX, out.Path)

			if audioOut == "" {
				return nil
			}
			spoken, err := res.Responder.Speak(ctx, out.Reply.Text)
			if err != nil {
				return err
			}
			data, err := base64.StdEncoding.DecodeString(spoken.Base64)
			if err != nil {
				return fmt.Errorf("decode synthesized audio: %w", err)
			}
			if err := os.WriteFile(audioOut, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "audio: %s (%s, %d bytes)\n", audioOut, spoken.MediaType, len(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&audioOut, "audio-out", "", "Write the synthesized reply to this file")
	cmd.Flags().StringVar(&mode, "mode", "", "Ops mode (Autopilot|Perch)")
	cmd.Flags().StringVar(&route, "route", "", "Ops route (Orbit|Grid sweep|Perimeter)")
	return cmd
}
