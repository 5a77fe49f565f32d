package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/maine/hn_keyword_bot/internal/config"
	"github.com/maine/hn_keyword_bot/internal/server"
	"github.com/maine/hn_keyword_bot/internal/subscription"
)

func newRunCmd(opts *options) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one invocation and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// память процесса не переживает вызов: контрольная точка всегда
			// откатывается на самую свежую запись, и уведомлять нечего
			if strings.EqualFold(strings.TrimSpace(opts.cfg.Storage.Backend), config.BackendMemory) {
				return errors.New("storage backend \"memory\" does not persist between runs; use redis or file, or hnbot serve")
			}

			ctx := cmd.Context()
			b, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer b.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if dryRun {
				matches, err := b.orchestrator.Preview(ctx)
				if err != nil {
					return err
				}
				return enc.Encode(matches)
			}

			resp := b.orchestrator.Invoke(ctx)
			if err := enc.Encode(resp.Body); err != nil {
				return err
			}
			if resp.Status != http.StatusOK {
				return errors.Newf("run finished with status %d", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify new items without locking, marking, sending or moving the checkpoint")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve GET/POST /api/cron for an external scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer b.Close()

			srv := server.New(opts.cfg.Server, b.orchestrator, opts.env.CronSecret, opts.logger.Named("http"))
			return srv.Run(ctx)
		},
	}
}

func newTeamsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List teams with their keywords, channels and notification counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			stats, err := b.index.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				pterm.Info.Println("No subscriptions yet")
				return nil
			}

			data := pterm.TableData{{"Team", "Keywords", "Channel", "Notifications"}}
			for _, s := range stats {
				keywords := append([]string(nil), s.Keywords...)
				sort.Strings(keywords)
				data = append(data, []string{
					s.TeamID,
					strings.Join(keywords, ", "),
					s.Channel,
					strconv.FormatInt(s.Notifications, 10),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
		},
	}
}

func newSubscribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <team> <keyword>...",
		Short: "Add keywords to a team",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			team := args[0]
			for _, kw := range args[1:] {
				added, err := b.index.AddKeyword(cmd.Context(), team, kw)
				if err != nil {
					return err
				}
				if added {
					pterm.Success.Printfln("%s: added %q", team, kw)
				} else {
					pterm.Warning.Printfln("%s: %q is already subscribed", team, kw)
				}
			}
			return printCount(cmd, b.index, team)
		},
	}
}

func newUnsubscribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <team> <keyword>...",
		Short: "Remove keywords from a team",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			team := args[0]
			for _, kw := range args[1:] {
				removed, err := b.index.RemoveKeyword(cmd.Context(), team, kw)
				if err != nil {
					return err
				}
				if removed {
					pterm.Success.Printfln("%s: removed %q", team, kw)
				} else {
					pterm.Warning.Printfln("%s: %q was not subscribed", team, kw)
				}
			}
			return printCount(cmd, b.index, team)
		},
	}
}

func newChannelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "channel <team> [destination]",
		Short: "Show or set where a team is notified (C123, slack:C123, discord:<webhook>, telegram:<chat_id>)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			team := args[0]
			if len(args) == 2 {
				if err := b.index.SetChannel(cmd.Context(), team, args[1]); err != nil {
					return err
				}
			}

			channel, ok, err := b.index.Channel(cmd.Context(), team)
			if err != nil {
				return err
			}
			if !ok {
				pterm.Warning.Printfln("%s has no channel", team)
				return nil
			}
			dest := subscription.ParseDestination(channel)
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s %s\n", team, dest.Kind, dest.Target)
			return nil
		},
	}
}

func printCount(cmd *cobra.Command, index *subscription.Index, team string) error {
	n, err := index.CountKeywords(cmd.Context(), team)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d keyword(s)\n", team, n)
	return nil
}

func init() {
	// pterm пишет цветной вывод только в терминал
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		pterm.DisableStyling()
	}
}
