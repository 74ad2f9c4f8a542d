package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/booknotes/internal/model"
)

var listSort string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List books in the journal",
	Long: `List every book in the journal.

Sort orders:
  id       Insertion order (default)
  rating   Highest rated first
  date     Most recently read first (alias: recency)

Examples:
  booknotes list
  booknotes list --sort rating
  booknotes list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listSort, "sort", "id", "Sort order: id, rating, date")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	order, err := model.ParseSortOrder(listSort)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	books, err := store.List(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}

	out := cmd.OutOrStdout()
	if GetJSONOutput() {
		if books == nil {
			books = []*model.Book{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(books)
	}

	if len(books) == 0 {
		if !IsQuiet() {
			fmt.Fprintln(out, "No books yet.")
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tREAD\tRATING")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			b.ID, b.Title, b.Author, b.DateReadString(), strconv.FormatFloat(b.Rating, 'f', -1, 64))
	}
	return tw.Flush()
}
