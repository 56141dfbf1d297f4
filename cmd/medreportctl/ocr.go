package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medimage2report/constants"
	"github.com/joseph-ayodele/medimage2report/internal/app"
	"github.com/joseph-ayodele/medimage2report/internal/llm"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <file.pdf>",
	Short: "Extract normalized text from a PDF without touching the database",
	Long: `Rasterize the PDF, OCR every page and print the normalized text.
With --prompt the LLM prompt that would be sent for this text is printed instead.`,
	Example: `  medreportctl ocr scan.pdf --lang eng+deu
  medreportctl ocr scan.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")
		asJSON, _ := cmd.Flags().GetBool("json")
		showPrompt, _ := cmd.Flags().GetBool("prompt")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		pdf, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		extractor, closeFn, err := app.BuildExtractor(ctx, cfg.OCR, logger)
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		if lang == "" {
			lang = cfg.OCR.Language
		}
		content, err := extractor.Extract(ctx, pdf, lang)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case showPrompt:
			_, err = fmt.Fprintln(out, llm.BuildPrompt(content, llm.PromptOptions{Locales: cfg.LLM.Locales, Filename: args[0]}))
		case asJSON:
			err = printJSON(out, content)
		default:
			_, err = fmt.Fprintln(out, content.RawText)
		}
		return err
	},
}

func init() {
	ocrCmd.Flags().String("lang", "", "OCR language (default OCR_LANGUAGE, "+constants.DefaultOCRLanguage+")")
	ocrCmd.Flags().Bool("json", false, "Output pages, text and warnings as JSON")
	ocrCmd.Flags().Bool("prompt", false, "Print the LLM prompt built from the extracted text")
	ocrCmd.Flags().Duration("timeout", 5*time.Minute, "Processing timeout")
	rootCmd.AddCommand(ocrCmd)
}
