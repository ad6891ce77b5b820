package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/chromactl/internal/chroma"
	"github.com/psantana5/chromactl/pkg/logging"
)

type collectionInfo struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
	Count    int                    `json:"count"`
}

func newCollectionsCmd(o *rootOptions) *cobra.Command {
	collectionsCmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "col"},
		Short:   "Inspect and copy collections",
		Long:    `Commands for listing and copying collections on the ChromaDB server.`,
	}

	collectionsCmd.AddCommand(newCollectionsListCmd(o))
	collectionsCmd.AddCommand(newCollectionsCopyCmd(o))
	return collectionsCmd
}

func newCollectionsListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all collections with their record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsList(cmd, o)
		},
	}
}

func runCollectionsList(cmd *cobra.Command, o *rootOptions) error {
	if err := o.checkOutput("table", "json"); err != nil {
		return err
	}
	ctx := cmd.Context()
	client := o.client()
	out := cmd.OutOrStdout()

	collections, err := client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Slice(collections, func(i, j int) bool { return collections[i].Name < collections[j].Name })

	infos := make([]collectionInfo, 0, len(collections))
	for _, c := range collections {
		count, err := client.Count(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", c.Name, err)
		}
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		infos = append(infos, collectionInfo{ID: c.ID, Name: c.Name, Metadata: metadata, Count: count})
	}

	if o.outputFormat == "json" {
		output, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "❌ No collections found")
		fmt.Fprintln(out, "\n💡 Hint: load some documents first, or copy an existing collection with")
		fmt.Fprintln(out, "   chromactl collections copy SRC DST")
		return nil
	}

	return writeCollectionsTable(out, infos)
}

func writeCollectionsTable(w io.Writer, infos []collectionInfo) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "ID", "Records", "Metadata")

	for _, info := range infos {
		metadata, err := json.Marshal(info.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata of %s: %w", info.Name, err)
		}
		table.Append(info.Name, info.ID, fmt.Sprintf("%d", info.Count), string(metadata))
	}

	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal collections: %d\n", len(infos))
	return nil
}

func newCollectionsCopyCmd(o *rootOptions) *cobra.Command {
	var (
		batchSize   int
		description string
		source      string
	)

	copyCmd := &cobra.Command{
		Use:   "copy <source> <target>",
		Short: "Copy a collection into a new one",
		Long: `Copy reads every record of the source collection, including embeddings,
replaces the target collection with a fresh one and writes the records in
batches. The target is deleted first if it already exists.

Example:
  chromactl collections copy pdf_rag_demo nike_10k_2023 \
    --description "Nike 10-K 2023 Annual Report" --source nke-10k-2023.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata := map[string]interface{}{}
			if description != "" {
				metadata["description"] = description
			}
			if source != "" {
				metadata["source"] = source
			}
			return runCollectionsCopy(cmd, o, args[0], args[1], batchSize, metadata)
		},
	}

	copyCmd.Flags().IntVar(&batchSize, "batch-size", chroma.DefaultBatchSize, "records per add request")
	copyCmd.Flags().StringVar(&description, "description", "", "description metadata for the target collection")
	copyCmd.Flags().StringVar(&source, "source", "", "source metadata for the target collection")

	return copyCmd
}

func runCollectionsCopy(cmd *cobra.Command, o *rootOptions, src, dst string, batchSize int, metadata map[string]interface{}) error {
	if batchSize <= 0 {
		return fmt.Errorf("--batch-size must be positive, got %d", batchSize)
	}
	logger := o.logger(cmd)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "🚀 Copying collection %s to %s...\n\n", src, dst)
	fmt.Fprintf(out, "📖 Reading source collection: %s\n", src)

	result, err := o.client().CopyCollection(cmd.Context(), src, dst, chroma.CopyOptions{
		BatchSize: batchSize,
		Metadata:  metadata,
		Pause:     o.copyPause,
		OnRead: func(count int) {
			fmt.Fprintf(out, "✅ Read %d records\n\n", count)
		},
		OnReplace: func(name string) {
			fmt.Fprintf(out, "🗑️ Deleted existing collection %s\n\n", name)
		},
		OnBatch: func(batch, batches, from, to int) {
			if batch == 1 {
				fmt.Fprintf(out, "📦 Created collection %s\n", dst)
				fmt.Fprintf(out, "\n📊 Copying in batches of %d records...\n\n", batchSize)
			}
			fmt.Fprintf(out, "   Batch %d/%d: records %d-%d\n", batch, batches, from+1, to)
			logger.Debug("writing batch", logging.Fields{"batch": batch, "batches": batches, "from": from, "to": to})
		},
	})
	if err != nil {
		fmt.Fprintf(out, "\n❌ Copy failed: %v\n", err)
		return err
	}

	fmt.Fprintln(out, "\n✅ Copy complete!")
	fmt.Fprintf(out, "   Source (%s): %d records\n", src, result.SourceCount)
	fmt.Fprintf(out, "   Target (%s): %d records\n", dst, result.TargetCount)

	if result.Verified() {
		fmt.Fprintln(out, "\n🎉 Record counts match")
	} else {
		fmt.Fprintln(out, "\n⚠️ Warning: record counts differ, check the target collection")
		logger.Warn("copy count mismatch", logging.Fields{
			"source": src, "target": dst,
			"source_count": result.SourceCount, "target_count": result.TargetCount,
		})
	}
	return nil
}
