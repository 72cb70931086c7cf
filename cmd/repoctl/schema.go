package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leafsii/repokit/internal/db/entities"
	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/repository"
	"github.com/leafsii/repokit/pkg/storage/sqlstore"
)

func newSchemaCmd() *cobra.Command {
	var dialectName, naming string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print CREATE TABLE statements for the sample entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := sqlstore.DialectByName(dialectName)
			if err != nil {
				return err
			}
			cfg := repository.DefaultConfig()
			cfg.NamingStrategy = metadata.NamingByName(naming)
			rc := repository.NewContext(cfg, nil)
			defer rc.Close()
			entities.Register(rc)

			metas, err := entities.Metadata(rc)
			if err != nil {
				return err
			}
			for _, meta := range metas {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", dialect.CreateTableSQL(meta))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dialectName, "dialect", "postgres", "SQL dialect: postgres or sqlite")
	cmd.Flags().StringVar(&naming, "naming", "snake", "naming strategy: default or snake")
	return cmd
}
