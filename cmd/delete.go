package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an enrolled person",
	Long: `Delete every stored encoding of an identity together with its
enrollment photos. The remote store is updated first; when it refuses,
nothing is deleted locally.`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().String("id", "", "Identity id (required)")
	deleteCmd.Flags().String("name", "", "Person name (required)")
	_ = deleteCmd.MarkFlagRequired("id")
	_ = deleteCmd.MarkFlagRequired("name")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := b.engine.DeleteIdentity(ctx, id, name)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s (%s): %d encodings removed\n", name, id, n)
	return nil
}
