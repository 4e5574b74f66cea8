package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/labelparse"
	"github.com/haivivi/tagmatch/pkg/match"
)

var (
	matchSelect     string
	matchCategories []string
	matchMax        int
)

var matchCmd = &cobra.Command{
	Use:   "match [label ...]",
	Short: "Map free-form labels to canonical tags",
	Long: `Match labels against the catalog. Without arguments the labels are read
from stdin, which may hold a model's raw answer: a JSON array, an object
with a "tags" field, a brace list, or a numbered, bulleted, comma or
newline separated list.

--select best keeps the single best unused tag per label; --select all
keeps every candidate once. --category limits the selection to the given
categories (general, artist, copyright, character, meta).

Examples:
  tagmatch match school_uniform "scholo uniform" -o table
  echo '{"tags": ["long hair", "cat ears"]}' | tagmatch match --select best
  tagmatch match "pink petals falling" --jq '.[0].candidates[0].name'`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchSelect, "select", "", "post-selection: best or all")
	matchCmd.Flags().StringSliceVar(&matchCategories, "category", nil, "categories kept by --select")
	matchCmd.Flags().IntVar(&matchMax, "max-results", -1, "candidates per label (0 keeps all; default from config)")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	queries := args
	if len(queries) == 0 {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		queries = labelparse.Parse(string(raw))
		if len(queries) == 0 {
			return errors.New("no labels given")
		}
	}
	cats, err := parseCategories(matchCategories)
	if err != nil {
		return err
	}
	switch matchSelect {
	case "", "best", "all":
	default:
		return fmt.Errorf("unknown --select %q (want best or all)", matchSelect)
	}

	cfg := *globalConfig
	if matchMax >= 0 {
		cfg.Matching.MaxResults = matchMax
	}
	sess, err := openSession(ctx, &cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	results := sess.pipeline.Resolve(ctx, queries)
	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error
	views := make(resultTable, len(results))
	for i, r := range results {
		views[i] = resultView{Query: r.Query, Candidates: r.Candidates}
		if r.Err != nil {
			logger.Warn("match failed", "query", r.Query, "error", r.Err)
			views[i].Error = r.Err.Error()
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == len(results) {
		return errors.Join(errs...)
	}

	switch matchSelect {
	case "best":
		return output(cmd, candidateTable(match.SelectBest(results, cats...)))
	case "all":
		return output(cmd, candidateTable(match.SelectAll(results, cats...)))
	default:
		return output(cmd, views)
	}
}

func parseCategories(names []string) ([]catalog.Category, error) {
	var cats []catalog.Category
	for _, n := range names {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		c, err := catalog.ParseCategory(n)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}
