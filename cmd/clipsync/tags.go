package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

func (c *cli) tagColorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag-color",
		Short: "Manage tag colors",
	}

	set := &cobra.Command{
		Use:   "set <tag> <#rrggbb | r g b>",
		Short: "Set a tag color as hex or three components in [0,1]",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := parseColor(args[0], args[1:])
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return a.store.SetTagColor(cmd.Context(), tc)
		},
	}

	rm := &cobra.Command{
		Use:   "rm <tag>...",
		Short: "Remove tag colors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			for _, tag := range args {
				if err := a.store.DeleteTagColor(cmd.Context(), tag); err != nil {
					return err
				}
			}
			return nil
		},
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List tag colors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			c.ui.tagColors(a.store.TagColors())
			return nil
		},
	}

	cmd.AddCommand(set, rm, ls)
	return cmd
}

func parseColor(tag string, comps []string) (model.TagColor, error) {
	tc := model.TagColor{Tag: tag}
	switch len(comps) {
	case 1:
		h := strings.TrimPrefix(comps[0], "#")
		if len(h) != 6 {
			return tc, fmt.Errorf("%w: color %q is not #rrggbb", errs.ErrValidation, comps[0])
		}
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return tc, fmt.Errorf("%w: color %q: %v", errs.ErrValidation, comps[0], err)
		}
		tc.Red = float64(v>>16&0xff) / 255
		tc.Green = float64(v>>8&0xff) / 255
		tc.Blue = float64(v&0xff) / 255
	case 3:
		var rgb [3]float64
		for i, s := range comps {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return tc, fmt.Errorf("%w: component %q: %v", errs.ErrValidation, s, err)
			}
			rgb[i] = f
		}
		tc.Red, tc.Green, tc.Blue = rgb[0], rgb[1], rgb[2]
	default:
		return tc, fmt.Errorf("%w: expected #rrggbb or three components", errs.ErrValidation)
	}
	if err := tc.Validate(); err != nil {
		return tc, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return tc, nil
}
