package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cognicore/recettes/internal/httpapi"
	"github.com/cognicore/recettes/internal/importer"
	"github.com/cognicore/recettes/pkg/recettes/config"
	"github.com/cognicore/recettes/pkg/recettes/stoplist"
)

func newRecommendCmd() *cobra.Command {
	var (
		userID  string
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print ranked recommendations for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServer()
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			results, err := engine.Recommend(cmd.Context(), userID)
			if err != nil {
				return err
			}
			h, err := engine.Preferences().Load(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no recommendations")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s (%s) score=%d\n", i+1, r.Recipe.Nom, r.Recipe.ID, r.Score)
				if explain {
					b := engine.Scorer().Explain(r.Recipe, h)
					data, _ := json.Marshal(b.Matched)
					fmt.Fprintf(out, "   matched %s\n", data)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().BoolVar(&explain, "explain", false, "show matched keywords")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newKeywordsCmd() *cobra.Command {
	var tuning string
	cmd := &cobra.Command{
		Use:   "keywords TEXT",
		Short: "Print the keywords extracted from an ingredient list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := (&config.Loader{TuningPath: tuning}).Load()
			if err != nil {
				return err
			}
			set := comp.Extractor.Extract(strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(set.Sorted(), " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&tuning, "tuning", "", "tuning YAML file")
	return cmd
}

func newImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load recipes from a JSONL file into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			recipes, err := importer.LoadFromJSONL(file)
			if err != nil {
				return err
			}

			cfg, err := loadServer()
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			n, err := importer.Import(cmd.Context(), engine, recipes)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d recipes\n", n, len(recipes))
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSONL file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServer()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("RECETTES_JWT_SECRET is required")
			}
			tok, err := httpapi.NewAuthenticator(cfg.JWTSecret).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStopwordsCmd() *cobra.Command {
	var (
		th    stoplist.Thresholds
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "stopwords",
		Short: "Suggest stopwords from ingredient frequency across stored recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServer()
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			recipes, err := engine.Recipes(cmd.Context())
			if err != nil {
				return err
			}
			a := stoplist.NewAnalyzer(engine.Extractor())
			for _, r := range recipes {
				a.Process(r)
			}

			out := cmd.OutOrStdout()
			candidates := a.Suggest(th)
			if len(candidates) == 0 {
				fmt.Fprintf(out, "no candidates in %d recipes\n", a.Total())
				return nil
			}
			for _, c := range candidates {
				fmt.Fprintf(out, "%s\tdf=%.1f%%\tscore=%.2f\n", c.Keyword, c.DFPercent, c.Score)
			}
			if !apply {
				return nil
			}

			if cfg.TuningFile == "" {
				return errors.New("--apply needs RECETTES_TUNING_FILE to persist stopwords")
			}
			added := stoplist.Apply(engine.Extractor(), candidates)
			saved, err := config.AddStopwords(cfg.TuningFile, added)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "added %d stopwords to %s: %s\n", len(saved), cfg.TuningFile, strings.Join(saved, " "))
			return nil
		},
	}
	cmd.Flags().Float64Var(&th.DFPercent, "df-percent", stoplist.DefaultThresholds().DFPercent, "minimum share of recipes containing the keyword")
	cmd.Flags().BoolVar(&apply, "apply", false, "add the candidates to the tuning file stopwords")
	cmd.Flags().Int64Var(&th.MinRecipes, "min-recipes", stoplist.DefaultThresholds().MinRecipes, "minimum corpus size")
	return cmd
}
