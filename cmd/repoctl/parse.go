package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leafsii/repokit/pkg/query"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse METHOD...",
		Short: "Print how method names are compiled",
		Example: `  repoctl parse findByEmailAndAgeGreaterThan
  repoctl parse countByActive deleteByCityIsNull`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, name := range args {
				parsed, err := query.Parse(name)
				if err != nil {
					color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
					failed++
					continue
				}
				printParsed(cmd.OutOrStdout(), parsed)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d method names failed to parse", failed, len(args))
			}
			return nil
		},
	}
}

func printParsed(w io.Writer, m *query.ParsedMethod) {
	bold := color.New(color.Bold)
	action := color.New(color.FgCyan)
	field := color.New(color.FgYellow)
	logical := color.New(color.FgMagenta)

	bold.Fprintf(w, "%s\n", m.Name)
	fmt.Fprintf(w, "  action:  %s\n", action.Sprint(m.Action))
	fmt.Fprintf(w, "  arity:   %d\n", m.Arity())
	for i, c := range m.Conditions {
		prefix := "  where:  "
		if i > 0 {
			prefix = "  " + logical.Sprintf("%-7s", c.Logical)
		}
		if c.Operator.TakesValue() {
			fmt.Fprintf(w, "%s %s %s $%d\n", prefix, field.Sprint(c.Field), c.Operator, c.ParameterIndex)
		} else {
			fmt.Fprintf(w, "%s %s %s\n", prefix, field.Sprint(c.Field), c.Operator)
		}
	}
}
