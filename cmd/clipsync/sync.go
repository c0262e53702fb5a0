package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/clipsync/internal/daemon"
	"github.com/and161185/clipsync/internal/inbox"
	"github.com/and161185/clipsync/internal/model"
	"github.com/and161185/clipsync/internal/syncer"
)

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the replica",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			co, err := a.coordinator()
			if err != nil {
				return err
			}
			res, err := co.Sync(cmd.Context())
			if err != nil {
				return err
			}
			printResult(c, res)
			return nil
		},
	}
}

func printResult(c *cli, r syncer.Result) {
	fmt.Fprintf(c.out, "fetched %d, adopted %d, uploaded %d, deleted %d\n", r.Fetched, r.Adopted, r.Uploaded, r.Deleted)
	if r.Skipped > 0 {
		fmt.Fprintf(c.errOut, "skipped %d unreadable remote record(s)\n", r.Skipped)
	}
	if r.Truncated {
		fmt.Fprintln(c.out, "first sync was limited; the rest arrives on the next cycle")
	}
	if r.Zombies > 0 {
		fmt.Fprintf(c.out, "ignored %d remote record(s) pending deletion\n", r.Zombies)
	}
	if r.Evicted > 0 {
		fmt.Fprintf(c.out, "evicted %d item(s) by retention\n", r.Evicted)
	}
	if r.TagsSkipped {
		fmt.Fprintln(c.errOut, "tag colors were not synced this time")
	} else if r.TagsAdopted+r.TagsUploaded > 0 {
		fmt.Fprintf(c.out, "tag colors: adopted %d, uploaded %d\n", r.TagsAdopted, r.TagsUploaded)
	}
	if r.DeleteFailed > 0 {
		fmt.Fprintf(c.errOut, "%d remote delete(s) failed and will be retried\n", r.DeleteFailed)
	}
}

// nudgingCapturer asks the daemon for a cycle after each capture.
type nudgingCapturer struct {
	inbox.Capturer
	d *daemon.Daemon
}

func (n *nudgingCapturer) Capture(ctx context.Context, content string, typ model.ContentType) (model.ClipboardItem, error) {
	it, err := n.Capturer.Capture(ctx, content, typ)
	if err == nil && n.d != nil {
		n.d.Nudge()
	}
	return it, err
}

func (c *cli) daemonCmd() *cobra.Command {
	var noInbox bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync periodically and capture files dropped into the inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			co, err := a.coordinator()
			if err != nil {
				return err
			}

			capt := &nudgingCapturer{Capturer: a.store}
			var w daemon.Watcher
			if !noInbox {
				in, err := inbox.New(c.cfg.InboxDir, capt, a.blobs, a.log)
				if err != nil {
					return err
				}
				w = in
				fmt.Fprintln(c.errOut, "watching", in.Dir())
			}
			d := daemon.New(co, w, c.cfg.Sync.Interval, a.log)
			capt.d = d

			a.log.Info("daemon started")
			err = d.Run(cmd.Context())
			a.log.Info("daemon stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&noInbox, "no-inbox", false, "do not watch the inbox directory")
	return cmd
}

func (c *cli) doctorCmd() *cobra.Command {
	var ack bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report local state and replica reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			cfgFile := c.cfg.File
			if cfgFile == "" {
				cfgFile = "(defaults)"
			}
			fmt.Fprintf(c.out, "config:          %s\n", cfgFile)
			fmt.Fprintf(c.out, "data dir:        %s (%s)\n", c.cfg.DataDir, c.cfg.Storage)

			var active, trashed, pinned int
			for _, it := range a.store.Items() {
				switch {
				case it.IsTrashed:
					trashed++
				case it.IsPinned:
					pinned++
					active++
				default:
					active++
				}
			}
			fmt.Fprintf(c.out, "items:           %d active (%d pinned), %d trashed\n", active, pinned, trashed)
			fmt.Fprintf(c.out, "tag colors:      %d\n", len(a.store.TagColors()))
			fmt.Fprintf(c.out, "pending deletes: %d\n", len(a.store.PendingDeletes()))

			if lerr := a.store.LoadError(); lerr != nil {
				fmt.Fprintf(c.out, "load error:      %v\n", lerr)
				if ack {
					if err := a.store.AcknowledgeLoadError(ctx); err != nil {
						return fmt.Errorf("save after acknowledge: %w", err)
					}
					fmt.Fprintln(c.out, "load error acknowledged; the unreadable data stays in the backup key")
				}
			} else {
				fmt.Fprintln(c.out, "load error:      none")
			}

			if c.cfg.Remote.Addr == "" {
				fmt.Fprintln(c.out, "replica:         not configured")
				return nil
			}
			_, ts, err := a.remoteClient()
			if err != nil {
				return err
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := ts.Ping(pctx); err != nil {
				fmt.Fprintf(c.out, "replica:         %s unreachable: %v\n", c.cfg.Remote.Addr, err)
				return nil
			}
			fmt.Fprintf(c.out, "replica:         %s ok\n", c.cfg.Remote.Addr)

			st, err := ts.Stats(pctx)
			if err != nil {
				fmt.Fprintf(c.out, "replica stats:   %v\n", err)
				return nil
			}
			fmt.Fprintf(c.out, "replica stores:  %d item(s), %d tag color(s)\n",
				st.Counts[model.KindItem], st.Counts[model.KindTagColor])
			fmt.Fprintf(c.out, "upload batch:    %d (replica max %d)\n", c.cfg.Remote.BatchSize, st.MaxBatch)
			if st.MaxBatch > 0 && c.cfg.Remote.BatchSize > st.MaxBatch {
				fmt.Fprintf(c.errOut, "remote.batch_size %d exceeds the replica limit %d; uploads will be rejected\n",
					c.cfg.Remote.BatchSize, st.MaxBatch)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ack, "ack", false, "acknowledge a load failure so changes are accepted again")
	return cmd
}
