package main

import (
	"github.com/spf13/cobra"

	"github.com/golobby/relorm"
)

var schematicCmd = &cobra.Command{
	Use:   "schematic",
	Short: "Print the tables and relations of the schema file",
	Long: `Schematic validates every declaration of the schema file, resolving
relation defaults, and prints one table per registered entity.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := relorm.LoadSchemaFile(cfg.Schema)
		if err != nil {
			return err
		}
		conn, err := openConnection(entities)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()
		conn.Schematic(cmd.OutOrStdout())
		return nil
	},
}
