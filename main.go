package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	cookie       string
	settingsPath string
	outputDir    string
	concurrency  int
	delayMs      int
	maxPages     int
	fullTitle    bool
	noZip        bool
	resumeRun    bool
	debugMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "zhihu-download [url]",
	Short: "Download articles as self-contained Markdown archives",
	Long: `Converts Zhihu answers, posts and whole columns into Markdown with
downloaded images, packaged as a zip. Also handles LMSYS blog posts and
documentation pages.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pageURL := args[0]

		// Get session cookie
		if cookie == "" {
			cookie = os.Getenv("ZHIHU_COOKIE")
		}

		// Build config overrides
		overrides := &ConfigOverrides{}
		if settingsPath != "" {
			overrides.SettingsPath = &settingsPath
		}
		if outputDir != "" {
			overrides.OutputDirectory = &outputDir
		}
		if cmd.Flags().Changed("concurrency") {
			overrides.Concurrency = &concurrency
		}
		if cmd.Flags().Changed("delay") {
			overrides.DelayMs = &delayMs
		}
		if cmd.Flags().Changed("full-title") {
			overrides.UseFullTitle = &fullTitle
		}
		if cmd.Flags().Changed("no-zip") {
			overrides.NoZip = &noZip
		}
		if cmd.Flags().Changed("max-pages") {
			overrides.MaxPages = &maxPages
		}

		// Create processor with config overrides
		processor, err := NewArticleProcessor(cookie, overrides)
		if err != nil {
			log.Fatalf("Failed to create processor: %v", err)
		}

		// Set debug mode globally
		if debugMode {
			SetDebugMode(true)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if id, ok := columnID(pageURL); ok {
			result, err := NewColumnDownloader(processor).DownloadColumn(ctx, id, resumeRun)
			reportBatch(result, err)
			return
		}

		if maxPages > 1 && isDocsURL(pageURL) {
			result, err := NewColumnDownloader(processor).DownloadSection(ctx, pageURL, maxPages, resumeRun)
			reportBatch(result, err)
			return
		}

		target, err := processor.DownloadArticle(ctx, pageURL)
		if err != nil {
			log.Fatalf("Download failed: %v", err)
		}
		fmt.Printf("%s Saved to %s\n", color.GreenString("✓"), target)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cookie, "cookie", "", "Session cookie (or ZHIHU_COOKIE environment variable)")
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to a settings YAML file")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel image downloads per article")
	rootCmd.Flags().IntVar(&delayMs, "delay", 0, "Delay between column articles in milliseconds")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 1, "Pages to follow from a documentation start page")
	rootCmd.Flags().BoolVar(&fullTitle, "full-title", false, "Keep full titles in filenames")
	rootCmd.Flags().BoolVar(&noZip, "no-zip", false, "Leave output as a directory instead of a zip")
	rootCmd.Flags().BoolVar(&resumeRun, "resume", false, "Resume an interrupted column or section download")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

// reportBatch prints the outcome of a column or section run and exits
// non-zero when the run did not finish cleanly.
func reportBatch(result *BatchResult, err error) {
	if result != nil {
		printBatchReport(result)
	}
	if err != nil {
		log.Fatalf("Batch download failed: %v", err)
	}
	if result != nil && result.State == BatchPartiallyCompleted {
		os.Exit(1)
	}
}

func printBatchReport(result *BatchResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("\nBatch %s: %s succeeded, %s failed\n",
		result.State, green(len(result.Succeeded)), red(len(result.Failed)))
	if result.ArchivePath != "" {
		fmt.Printf("Output: %s\n", result.ArchivePath)
	}
	if len(result.Failed) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Item", "URL", "Reason"})
	for _, f := range result.Failed {
		t.AppendRow(table.Row{f.ID, f.URL, f.Reason})
	}
	t.Render()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
