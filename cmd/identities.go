package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/recognize"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect the enrollment store",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runIdentitiesList,
}

var identitiesMatchCmd = &cobra.Command{
	Use:   "match [embedding.json]",
	Short: "Find the enrolled identities nearest to a probe embedding",
	Long: `Match reads a JSON array of floats (one embedding vector) and prints
the nearest enrolled identities by cosine distance, using an HNSW index
over the template centroids.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentitiesMatch,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesMatchCmd)

	identitiesMatchCmd.Flags().Int("top", 3, "Number of candidates to print")
}

func runIdentitiesList(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	templates, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list identities: %w", err)
	}
	if len(templates) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	fmt.Printf("Enrolled identities (%d):\n", len(templates))
	for _, t := range templates {
		fmt.Printf("  %-30s %d samples, dim %d\n", t.Name, len(t.Samples), t.Dim())
	}
	return nil
}

func runIdentitiesMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read embedding file: %w", err)
	}
	var probe []float32
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("embedding file must be a JSON array of floats: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	templates, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list identities: %w", err)
	}

	index := recognize.NewIndex(templates)
	matches, err := index.Nearest(probe, mustGetInt(cmd, "top"))
	if err != nil {
		return fmt.Errorf("could not search index: %w", err)
	}

	fmt.Printf("Nearest identities (%d enrolled):\n", index.Len())
	for i, m := range matches {
		fmt.Printf("  %d. %-30s distance %.4f\n", i+1, m.Template.Name, m.Distance)
	}
	return nil
}
