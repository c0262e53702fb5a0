package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/inbox"
	"github.com/and161185/clipsync/internal/localstore"
	"github.com/and161185/clipsync/internal/model"
)

// resolveID accepts a full id or a unique prefix of one.
func resolveID(items []model.ClipboardItem, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty id", errs.ErrValidation)
	}
	var match string
	for _, it := range items {
		if it.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = it.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("item %s: %w", ref, errs.ErrNotFound)
	}
	return match, nil
}

func (c *cli) addCmd() *cobra.Command {
	var (
		file string
		typ  string
		tags []string
		pin  bool
		name string
	)
	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Capture text (from args or stdin) or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				data  []byte
				ct    = model.ContentType(typ)
				guess string
			)
			switch {
			case file != "":
				if data, err = os.ReadFile(file); err != nil {
					return err
				}
				guess = filepath.Base(file)
			case len(args) > 0:
				data = []byte(strings.Join(args, " "))
			default:
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			guessed, content := inbox.Classify(guess, data)
			if ct == "" {
				ct = guessed
			}
			if ct.IsBinary() {
				if content, err = a.blobs.Put(data); err != nil {
					return fmt.Errorf("store blob: %w", err)
				}
				if name == "" && file != "" {
					name = filepath.Base(file)
				}
			} else if guessed.IsBinary() {
				return fmt.Errorf("%w: %s content is not text", errs.ErrValidation, guessed)
			}

			it, err := a.store.Capture(ctx, content, ct)
			if err != nil {
				return err
			}
			if name != "" {
				if err := a.store.Rename(ctx, it.ID, name); err != nil {
					return err
				}
			}
			if len(tags) > 0 {
				if err := a.store.SetTags(ctx, it.ID, tags); err != nil {
					return err
				}
			}
			if pin {
				if err := a.store.SetPinned(ctx, it.ID, true); err != nil {
					return err
				}
			}
			fmt.Fprintln(c.out, it.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "capture the content of a file")
	f.StringVarP(&typ, "type", "t", "", "content type (text, url, image, pdf, audio, file)")
	f.StringSliceVar(&tags, "tag", nil, "tags to attach")
	f.BoolVar(&pin, "pin", false, "pin the new item")
	f.StringVar(&name, "name", "", "display name")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		trashed bool
		all     bool
		query   string
		tag     string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items, pinned first then newest",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			f := localstore.Filter{Query: query, Tag: tag, Limit: limit}
			switch {
			case all:
				f.Scope = localstore.ScopeAll
			case trashed:
				f.Scope = localstore.ScopeTrashed
			}
			items := a.store.List(f)
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			c.ui.items(items, a.store.TagColors())
			return nil
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&trashed, "trashed", false, "list only trashed items")
	fl.BoolVar(&all, "all", false, "list active and trashed items")
	fl.StringVarP(&query, "query", "q", "", "case-insensitive search in content and name")
	fl.StringVar(&tag, "tag", "", "only items carrying this tag")
	fl.IntVarP(&limit, "limit", "n", 0, "maximum number of items (0 = all)")
	fl.BoolVar(&asJSON, "json", false, "print items as JSON")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the full content of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			id, err := resolveID(a.store.Items(), args[0])
			if err != nil {
				return err
			}
			it, err := a.store.Get(id)
			if err != nil {
				return err
			}
			if !it.Type.IsBinary() {
				fmt.Fprintln(c.out, it.Content)
				return nil
			}
			if !a.blobs.Exists(it.Content) {
				return fmt.Errorf("item %s: %s content is not on this device", shortID(id), it.Type)
			}
			fmt.Fprintln(c.out, a.blobs.Path(it.Content))
			return nil
		},
	}
}

// itemCmd builds a command applying fn to each resolved id.
func (c *cli) itemCmd(use, short string, fn func(cmd *cobra.Command, a *app, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			var failed error
			for _, ref := range args {
				id, err := resolveID(a.store.Items(), ref)
				if err == nil {
					err = fn(cmd, a, id)
				}
				if err != nil {
					failed = errors.Join(failed, err)
				}
			}
			return failed
		},
	}
}

func (c *cli) pinCmd(pinned bool) *cobra.Command {
	if pinned {
		return c.itemCmd("pin <id>...", "Pin items", func(cmd *cobra.Command, a *app, id string) error {
			return a.store.SetPinned(cmd.Context(), id, true)
		})
	}
	return c.itemCmd("unpin <id>...", "Unpin items", func(cmd *cobra.Command, a *app, id string) error {
		return a.store.SetPinned(cmd.Context(), id, false)
	})
}

func (c *cli) trashCmd() *cobra.Command {
	return c.itemCmd("trash <id>...", "Move items to the trash", func(cmd *cobra.Command, a *app, id string) error {
		return a.store.Trash(cmd.Context(), id)
	})
}

func (c *cli) recoverCmd() *cobra.Command {
	return c.itemCmd("recover <id>...", "Restore items from the trash", func(cmd *cobra.Command, a *app, id string) error {
		return a.store.Recover(cmd.Context(), id)
	})
}

func (c *cli) purgeCmd() *cobra.Command {
	return c.itemCmd("purge <id>...", "Delete items permanently, here and on the replica", func(cmd *cobra.Command, a *app, id string) error {
		return a.store.Purge(cmd.Context(), id)
	})
}

func (c *cli) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> [name]",
		Short: "Set or clear the display name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			id, err := resolveID(a.store.Items(), args[0])
			if err != nil {
				return err
			}
			var name string
			if len(args) == 2 {
				name = args[1]
			}
			return a.store.Rename(cmd.Context(), id, name)
		},
	}
}

func (c *cli) tagCmd() *cobra.Command {
	var add, remove bool
	cmd := &cobra.Command{
		Use:   "tag <id> [tag...]",
		Short: "Replace, extend or shrink an item's tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if add && remove {
				return fmt.Errorf("%w: --add and --rm are exclusive", errs.ErrValidation)
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			id, err := resolveID(a.store.Items(), args[0])
			if err != nil {
				return err
			}
			it, err := a.store.Get(id)
			if err != nil {
				return err
			}
			tags := args[1:]
			switch {
			case add:
				tags = append(it.Tags, tags...)
			case remove:
				drop := make(map[string]bool, len(tags))
				for _, t := range tags {
					drop[strings.TrimSpace(t)] = true
				}
				tags = nil
				for _, t := range it.Tags {
					if !drop[t] {
						tags = append(tags, t)
					}
				}
			}
			return a.store.SetTags(cmd.Context(), id, tags)
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "add to the existing tags")
	cmd.Flags().BoolVar(&remove, "rm", false, "remove from the existing tags")
	return cmd
}

func (c *cli) emptyTrashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "empty-trash",
		Short: "Purge every trashed item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			n, err := a.store.EmptyTrash(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "purged %d item(s)\n", n)
			return nil
		},
	}
}

func (c *cli) retentionCmd() *cobra.Command {
	var maxAge, maxItems int
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Apply the retention policy now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			r := c.cfg.Retention
			if cmd.Flags().Changed("max-age-days") {
				r.MaxAgeDays = maxAge
			}
			if cmd.Flags().Changed("max-items") {
				r.MaxItems = maxItems
			}
			if !r.Enabled() {
				fmt.Fprintln(c.out, "retention is disabled")
				return nil
			}
			evicted, err := a.store.ApplyRetentionPolicy(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "evicted %d item(s)\n", len(evicted))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxAge, "max-age-days", 0, "override retention.max_age_days")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "override retention.max_items")
	return cmd
}
