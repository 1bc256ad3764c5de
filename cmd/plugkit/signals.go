// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holomush/plugkit/internal/app"
)

// NewSignalsCmd creates the signals subcommand.
func NewSignalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "List plugins, signals and receivers",
		Long: `Start the plugin host, print the loaded plugins with the signals and
receivers they registered, then stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			return listSignals(cmd.Context(), cmd, a)
		},
	}
}

func listSignals(ctx context.Context, cmd *cobra.Command, a *app.App) (err error) {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, a.Stop(stopCtx))
	}()

	_, _ = fmt.Fprint(cmd.OutOrStdout(), formatSignals(a))
	return nil
}

// formatSignals renders the plugin, signal and receiver tables.
func formatSignals(a *app.App) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PLUGIN\tSTATE\tCLASS")
	_, _ = fmt.Fprintln(w, "------\t-----\t-----")
	for _, inst := range a.Directory().Instances() {
		class := "-"
		if c, ok := inst.Class(); ok {
			class = c.Name
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", inst.Name(), inst.State(), class)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "SIGNAL\tOWNER\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "------\t-----\t-----------")
	for _, s := range a.Signals().Signals(nil) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Owner.RegistrantName(), orDash(s.Description))
	}
	_, _ = fmt.Fprintln(w)

	receivers := a.Signals().Receivers(nil)
	names := make([]string, 0, len(receivers))
	for name := range receivers {
		names = append(names, name)
	}
	slices.Sort(names)

	_, _ = fmt.Fprintln(w, "RECEIVER\tSIGNAL\tOWNER\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "--------\t------\t-----\t-----------")
	for _, name := range names {
		r := receivers[name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Signal, r.Owner.RegistrantName(), orDash(r.Description))
	}

	_ = w.Flush()
	return buf.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
