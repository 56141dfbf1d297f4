package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medimage2report/internal/app"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/ingest"
	"github.com/joseph-ayodele/medimage2report/internal/pipeline"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf|dir>...",
	Short: "Store PDFs as documents, optionally processing them right away",
	Example: `  medreportctl upload --owner session-42 scan.pdf
  medreportctl upload --owner session-42 --process --provider ollama ./inbox`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var processCmd = &cobra.Command{
	Use:   "process <document-id>",
	Short: "Run OCR and LLM structuring for a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("document id must be a UUID: %w", err)
		}
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return processOne(cmd, a, id)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List an owner's documents with their processing status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		r, err := openRepos(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()

		docs, err := r.docs.ListByOwner(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd.OutOrStdout(), docs)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tUPLOADED\tLATEST REPORT")
		for _, d := range docs {
			latest := "-"
			if d.LatestReportID != nil {
				latest = d.LatestReportID.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.OriginalFilename, d.Status, d.UploadedAt.Format(time.RFC3339), latest)
		}
		return tw.Flush()
	},
}

var errorsCmd = &cobra.Command{
	Use:   "errors <document-id>",
	Short: "Show a document's processing errors, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("document id must be a UUID: %w", err)
		}
		r, err := openRepos(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()
		errs, err := r.errs.ListByDocument(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), errs)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <document-id>",
	Short: "Print the latest structured report of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("document id must be a UUID: %w", err)
		}
		r, err := openRepos(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()

		if all, _ := cmd.Flags().GetBool("all"); all {
			reps, err := r.reports.ListByDocument(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reps)
		}
		rep, err := r.reports.LatestByDocument(cmd.Context(), id)
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("document %s has no report yet", id)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rep)
	},
}

func init() {
	uploadCmd.Flags().String("owner", "cli", "Owner/session reference for the uploaded documents")
	uploadCmd.Flags().Bool("process", false, "Process each new document after upload")
	uploadCmd.Flags().Bool("skip-hidden", true, "Skip hidden files and directories when walking")
	addProcessFlags(uploadCmd)
	addProcessFlags(processCmd)

	statusCmd.Flags().String("owner", "cli", "Owner/session reference")
	statusCmd.Flags().Bool("json", false, "Output as JSON")
	reportCmd.Flags().Bool("all", false, "Print every report of the document, newest first")

	rootCmd.AddCommand(uploadCmd, processCmd, statusCmd, errorsCmd, reportCmd)
}

func addProcessFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "LLM provider: openai, gemini or ollama (default LLM_PROVIDER)")
	cmd.Flags().String("lang", "", "OCR language, e.g. eng or eng+deu (default OCR_LANGUAGE)")
}

func processOptions(cmd *cobra.Command) pipeline.Options {
	provider, _ := cmd.Flags().GetString("provider")
	lang, _ := cmd.Flags().GetString("lang")
	return pipeline.Options{Provider: provider, Language: lang}
}

func processOne(cmd *cobra.Command, a *app.App, id uuid.UUID) error {
	out, err := a.Processor.Process(cmd.Context(), id, processOptions(cmd))
	if err != nil && out.AttemptID == uuid.Nil {
		return err
	}
	result := map[string]any{
		"document_id": out.DocumentID,
		"attempt_id":  out.AttemptID,
		"status":      out.Status,
		"pages":       out.Pages,
		"warnings":    out.Warnings,
		"elapsed_ms":  out.Duration.Milliseconds(),
	}
	if out.Report != nil {
		result["report"] = out.Report
	}
	if out.Error != nil {
		result["error"] = out.Error
	}
	if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
		return perr
	}
	return err
}

func runUpload(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	process, _ := cmd.Flags().GetBool("process")
	skipHidden, _ := cmd.Flags().GetBool("skip-hidden")

	// only processing needs OCR and LLM clients
	var (
		a   *app.App
		svc *ingest.Service
	)
	if process {
		var err error
		if a, err = app.New(cmd.Context(), cfg, logger); err != nil {
			return err
		}
		defer a.Close()
		svc = a.Ingest
	} else {
		r, err := openRepos(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()
		svc = ingest.NewService(r.docs, nil, logger)
	}

	var results []ingest.Result
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if st.IsDir() {
			rs, stats, err := svc.IngestDirectory(cmd.Context(), owner, arg, skipHidden)
			if err != nil {
				return err
			}
			logger.Info("directory ingested", "root", arg, "matched", stats.Matched, "failed", stats.Failed)
			results = append(results, rs...)
			continue
		}
		r, err := svc.IngestPath(cmd.Context(), owner, arg)
		if err != nil {
			r = ingest.Result{SourcePath: filepath.Clean(arg), Err: err.Error()}
		}
		results = append(results, r)
	}
	if err := printJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if !process {
		return nil
	}

	var failed int
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		if err := processOne(cmd, a, r.DocumentID); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed processing", failed)
	}
	return nil
}
