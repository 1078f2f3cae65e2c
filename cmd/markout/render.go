package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fcapolini/markout/internal/config"
	"github.com/fcapolini/markout/internal/errors"
	"github.com/fcapolini/markout/pkg/page"
)

func (c *cli) renderCmd() *cobra.Command {
	var docroot string

	cmd := &cobra.Command{
		Use:   "render <page>",
		Short: "Render a page to standard output",
		Long: `Render a page server-side and write the HTML to standard output.

The page is named as in URLs, without extension: "index", "blog/first".

Examples:
  markout render index
  markout render blog/first --docroot=./site`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if docroot != "" {
				abs, err := filepath.Abs(docroot)
				if err != nil {
					return errors.New("E102").Wrap(err)
				}
				cfg.Store = config.StoreFS
				cfg.Docroot = abs
			}
			store, err := newStore(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := page.NewRenderer(page.WithLogger(c.logger)).Render(ctx, p)
			if err != nil {
				return err
			}
			_, err = c.out.Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&docroot, "docroot", "d", "", "Page directory (default from markout.json)")

	return cmd
}
