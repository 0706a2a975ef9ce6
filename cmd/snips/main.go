package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snips/internal/api"
	"snips/internal/config"
	"snips/internal/domain"
	"snips/internal/manager"
	"snips/internal/store"
	"snips/internal/suggest"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "snips",
		Short:         "Snippet manager with AI-powered categorization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(collectionsCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps each error kind to a distinct exit status.
func exitCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindConfiguration:
		return 2
	case domain.KindValidation:
		return 3
	case domain.KindDuplicate:
		return 4
	case domain.KindFolder:
		return 5
	case domain.KindAPI, domain.KindNetwork, domain.KindRateLimit:
		return 6
	}
	return 1
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func getManager() (*manager.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger()

	st, err := store.New(cfg.SnippetsPath, logger)
	if err != nil {
		return nil, err
	}

	ai, err := suggest.New(cfg.APIKey, cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	return manager.New(st, ai, logger), nil
}

func addCmd() *cobra.Command {
	var name, keyword, collection, description string
	var noAI, overwrite, yes bool

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Create a snippet, letting AI suggest missing metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")

			mgr, err := getManager()
			if err != nil {
				return err
			}

			missing := name == "" || keyword == "" || collection == ""
			if !noAI && missing {
				if err := fillFromSuggestion(mgr, content, &name, &keyword, &collection, &description, yes); err != nil {
					return err
				}
			}

			result, err := mgr.CreateSnippet(manager.CreateRequest{
				Content:     content,
				Name:        name,
				Keyword:     keyword,
				Collection:  collection,
				Description: description,
				UseAI:       false,
				Overwrite:   overwrite,
			})
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "snippet name")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "trigger keyword")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "snippet description")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip AI metadata suggestion")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite an existing snippet with the same keyword")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept suggestions without prompting")
	return cmd
}

// fillFromSuggestion runs the confidence-tiered flow: accept on high,
// confirm on medium, manual entry on low or when no suggestion came back.
func fillFromSuggestion(mgr *manager.Manager, content string, name, keyword, collection, description *string, yes bool) error {
	suggestion, err := mgr.Suggestions(content)
	if err != nil {
		return err
	}

	if suggestion == nil {
		fmt.Println("AI suggestion unavailable, falling back to manual entry")
		return promptManual(mgr, name, keyword, collection)
	}

	fmt.Printf("AI suggestion (confidence: %s):\n", suggestion.Confidence)
	fmt.Printf("  Collection:  %s\n", suggestion.Collection)
	fmt.Printf("  Name:        %s\n", suggestion.Name)
	fmt.Printf("  Keyword:     %s\n", suggestion.Keyword)
	fmt.Printf("  Description: %s\n", suggestion.Description)

	accept := false
	switch suggestion.Confidence {
	case domain.ConfidenceHigh:
		accept = true
		fmt.Println("Using AI suggestion (high confidence)")
	case domain.ConfidenceMedium:
		if yes {
			accept = true
		} else {
			accept = promptYesNo("Medium confidence. Use this suggestion?")
		}
	default:
		if yes {
			accept = true
		} else {
			fmt.Println("Low confidence, falling back to manual entry")
		}
	}

	if accept {
		if *name == "" {
			*name = suggestion.Name
		}
		if *keyword == "" {
			*keyword = suggestion.Keyword
		}
		if *collection == "" {
			*collection = suggestion.Collection
		}
		if *description == "" {
			*description = suggestion.Description
		}
		return nil
	}

	return promptManual(mgr, name, keyword, collection)
}

func promptYesNo(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func promptManual(mgr *manager.Manager, name, keyword, collection *string) error {
	reader := bufio.NewReader(os.Stdin)

	ask := func(label, current string) string {
		if current != "" {
			return current
		}
		fmt.Printf("%s: ", label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	if *collection == "" {
		if existing, err := mgr.Collections(); err == nil && len(existing) > 0 {
			fmt.Printf("Existing collections: %s\n", strings.Join(existing, ", "))
		}
	}

	*collection = ask("Collection", *collection)
	*name = ask("Name", *name)
	*keyword = ask("Keyword", *keyword)
	return nil
}

func printResult(result *domain.CreateResult) {
	status := "Created"
	if result.Overwritten {
		status = "Overwrote"
	}
	fmt.Printf("%s snippet %q in collection %q\n", status, result.Keyword, result.Collection)
	fmt.Printf("  Name: %s\n", result.Name)
	fmt.Printf("  File: %s\n", result.FilePath)
	if result.AISuggested {
		fmt.Printf("  AI confidence: %s\n", result.AIConfidence)
	}
}

// batchFile is the on-disk batch input surface.
type batchFile struct {
	Snippets []domain.BatchItem `json:"snippets"`
}

func batchCmd() *cobra.Command {
	var noAI, overwrite, stopOnError bool

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Create snippets from a JSON batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read batch file: %w", err)
			}

			var batch batchFile
			if err := json.Unmarshal(data, &batch); err != nil {
				return fmt.Errorf("invalid JSON in %s: %w", args[0], err)
			}
			if len(batch.Snippets) == 0 {
				return fmt.Errorf("no snippets found in %s (expected a top-level \"snippets\" array)", args[0])
			}

			mgr, err := getManager()
			if err != nil {
				return err
			}

			result := mgr.CreateBatch(batch.Snippets, manager.BatchOptions{
				UseAI:           !noAI,
				Overwrite:       overwrite,
				ContinueOnError: !stopOnError,
			})

			fmt.Printf("Processed %d snippets: %d successful, %d failed\n",
				result.Total, result.Successful, result.Failed)
			for _, e := range result.Errors {
				fmt.Printf("  #%d [%s] %s\n", e.Index, e.Kind, e.Message)
			}

			if result.Failed > 0 {
				return fmt.Errorf("%d of %d snippets failed", result.Failed, result.Total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip AI metadata suggestion")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing snippets")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "stop at the first failure")
	return cmd
}

func listCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snippets",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := getManager()
			if err != nil {
				return err
			}

			snippets, err := mgr.Snippets(collection)
			if err != nil {
				return err
			}

			if len(snippets) == 0 {
				fmt.Println("No snippets yet. Use 'snips add' to create one.")
				return nil
			}

			for keyword, sn := range snippets {
				fmt.Printf("%-20s %-15s %s\n", keyword, sn.Collection, truncate(sn.Name, 50))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "restrict to one collection")
	return cmd
}

func collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := getManager()
			if err != nil {
				return err
			}

			collections, err := mgr.Collections()
			if err != nil {
				return err
			}

			if len(collections) == 0 {
				fmt.Println("No collections yet. They are created with the first snippet.")
				return nil
			}
			for _, c := range collections {
				fmt.Println(c)
			}
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "delete [keyword]",
		Short: "Delete a snippet by keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := getManager()
			if err != nil {
				return err
			}

			deleted, err := mgr.DeleteSnippet(args[0], collection)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Printf("No snippet found with keyword %q\n", args[0])
				return nil
			}
			fmt.Printf("Deleted snippet %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection holding the snippet")
	return cmd
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest [content]",
		Short: "Show AI metadata suggestions without creating anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := getManager()
			if err != nil {
				return err
			}

			suggestion, err := mgr.Suggestions(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if suggestion == nil {
				fmt.Println("No suggestion available.")
				return nil
			}

			out, err := json.MarshalIndent(suggestion, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check folder access and API connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := getManager()
			if err != nil {
				return err
			}

			report := mgr.ValidateSetup()

			fmt.Printf("Snippets folder: %s\n", okOrFail(report.FolderOK))
			fmt.Printf("API connection:  %s\n", okOrFail(report.APIOK))
			fmt.Printf("Collections:     %d\n", report.Collections)
			fmt.Printf("Snippets:        %d\n", report.Snippets)
			if report.Skipped > 0 {
				fmt.Printf("Skipped files:   %d (malformed, ignored on read)\n", report.Skipped)
			}
			for _, e := range report.Errors {
				fmt.Printf("  ! %s\n", e)
			}

			if !report.FolderOK || !report.APIOK {
				return fmt.Errorf("setup validation failed (%d errors)", len(report.Errors))
			}
			return nil
		},
	}
}

func okOrFail(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := getManager()
			if err != nil {
				return err
			}

			server := api.New(mgr, addr, newLogger())
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "server address")
	return cmd
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
