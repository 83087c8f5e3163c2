package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bookshelf/internal/catalog/importer"
	catalogrepo "bookshelf/internal/catalog/repository"
	catalogservice "bookshelf/internal/catalog/service"
	catalogvalidator "bookshelf/internal/catalog/validator"
	"bookshelf/internal/policy"
	"bookshelf/pkg/events"
	kafka_config "bookshelf/pkg/kafka/config"
	"bookshelf/pkg/middleware"
)

type importSummary struct {
	Rows    int
	Created int
	Failed  int
}

func newImportBooksCmd(e *env) *cobra.Command {
	var (
		actor  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import-books <file.csv>",
		Short: "Bulk-create catalog entries from a CSV file",
		Long: "The header must name title, author, isbn, category and page_count. " +
			"published_year, quantity and status are optional.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			inputs, rowErrs, err := importer.ParseCSV(f)
			if err != nil {
				return err
			}
			for _, re := range rowErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %v\n", re)
			}
			if dryRun {
				cmd.Printf("%d rows parsed, %d skipped\n", len(inputs), len(rowErrs))
				return nil
			}

			cfg := e.connect()
			kcfg, err := kafka_config.Load()
			if err != nil {
				return err
			}
			publisher, closePublisher, err := events.Connect(kcfg, ServiceName, nil, cfg.Log)
			if err != nil {
				return err
			}
			defer closePublisher()

			books := catalogservice.NewBookService(
				catalogrepo.NewMongoBookRepository(cfg),
				catalogvalidator.NewBookValidator(cfg.Log),
				policy.Default(),
				events.NewEmitter(publisher, cfg.EventPublishTimeout, cfg.Log),
				cfg,
			)

			// one correlation id ties every book.created event of this run together
			runID := uuid.NewString()
			ctx := middleware.WithRequestID(cmd.Context(), runID)
			cmd.Printf("import run %s\n", runID)

			summary := importSummary{Rows: len(inputs), Failed: len(rowErrs)}
			for _, input := range inputs {
				created, err := books.Create(ctx, input, actor)
				if err != nil {
					summary.Failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "failed %s (%s): %v\n", input.ISBN, input.Title, err)
					continue
				}
				summary.Created += len(created)
			}

			cmd.Printf("%d rows, %d copies created, %d failed\n", summary.Rows, summary.Created, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d rows failed", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", ServiceName, "actor id recorded on book.created events")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	return cmd
}
