package main

import (
	"github.com/spf13/cobra"

	"github.com/fcapolini/markout/internal/errors"
	"github.com/fcapolini/markout/pkg/spec"
)

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <spec-file>...",
		Short: "Validate spec documents",
		Long: `Parse and build spec documents, reporting the first error of each.

Examples:
  markout check pages/index.yaml
  markout check pages/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed error
			for _, path := range args {
				n, err := checkFile(path)
				if err != nil {
					if failed != nil {
						errors.Print(c.errOut, failed)
					}
					failed = err
					continue
				}
				c.success("%s: %d scopes", path, n)
			}
			return failed
		},
	}
}

// checkFile builds the document at path and returns its scope count. Errors
// carry the offending line when the decoder reports one.
func checkFile(path string) (int, error) {
	doc, err := spec.LoadFile(path)
	if err == nil {
		_, err = doc.Build(nil)
	}
	if err != nil {
		me := errors.Classify(err)
		if line, ok := errors.LineOf(err); ok {
			me.WithLocation(path, line)
		}
		return 0, me
	}
	return countScopes(doc), nil
}

func countScopes(d *spec.Document) int {
	n := 1
	for i := range d.Children {
		n += countScopes(&d.Children[i])
	}
	return n
}
