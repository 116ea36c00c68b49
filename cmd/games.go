package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meepleboard/meeple/client"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/meepleboard/meeple/pkg/pool"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// gamesCmd groups the game lookup and import commands.
func gamesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Look up, search and import board games",
	}

	cmd.AddCommand(
		gameShowCmd(a),
		gameSearchCmd(a),
		gameSuggestCmd(a),
		gameExpansionsCmd(a),
		gameImportCmd(a),
	)

	return cmd
}

func gameShowCmd(a *app) *cobra.Command {
	var byBgg bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a game by its MeepleBoard id (or BGG id with --bgg)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			games := a.client.Games()
			if !byBgg {
				game, err := games.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printGame(cmd, game)
				return nil
			}

			bggID, err := parseBggID(args[0])
			if err != nil {
				return err
			}
			game, err := games.GetByBggID(cmd.Context(), bggID)
			if err != nil {
				return err
			}
			if game == nil {
				return clierr.New(clierr.NotFound, fmt.Sprintf("No game with BGG id %d has been imported. Use `meeple games import %d`.", bggID, bggID), nil)
			}
			printGame(cmd, game)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&byBgg, "bgg", "b", false, "Treat the id as a BoardGameGeek id")
	return cmd
}

func gameSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search [name]",
		Short: "Find a game by name, importing it from BoardGameGeek if needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := a.client.Games().SearchOrImport(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printGame(cmd, game)
			return nil
		},
	}
}

func gameSuggestCmd(a *app) *cobra.Command {
	var kind string
	var page client.Page

	cmd := &cobra.Command{
		Use:   "suggest [query]",
		Short: "List BoardGameGeek titles matching a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			games := a.client.Games()
			query := strings.Join(args, " ")

			var hits []client.GameSuggestion
			var err error
			switch strings.ToLower(kind) {
			case "all":
				hits, err = games.Suggestions(cmd.Context(), query, page)
			case "base":
				hits, err = games.BaseGameSuggestions(cmd.Context(), query, page)
			case "expansion":
				hits, err = games.ExpansionSuggestions(cmd.Context(), query, page)
			default:
				return clierr.New(clierr.Validation, fmt.Sprintf("Invalid kind %q. Use all, base or expansion.", kind), nil)
			}
			if err != nil {
				return err
			}
			printSuggestions(cmd, hits)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "all", "Which titles to search [all, base, expansion]")
	cmd.Flags().IntVarP(&page.Offset, "offset", "o", 0, "Number of results to skip")
	cmd.Flags().IntVarP(&page.Limit, "limit", "l", client.DefaultPageLimit, "Maximum number of results")
	return cmd
}

func gameExpansionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expansions [id]",
		Short: "List expansions of a base game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := a.client.Games().ExpansionsOfBase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSuggestions(cmd, hits)
			return nil
		},
	}
}

func gameImportCmd(a *app) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "import [bggId...]",
		Short: "Import games from BoardGameGeek by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := parseBggID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			bar := progressbar.NewOptions(len(ids),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Importing games..."),
				progressbar.OptionSetWidth(20),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			results, err := a.client.Games().ImportMany(cmd.Context(), ids, workers, func(client.ImportResult) {
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "BGG ID", "Game ID", "Name", "Status")
			for _, r := range results {
				if r.Err != nil {
					table.Append([]string{strconv.Itoa(r.Item), "-", "-", "failed: " + cliError(r.Err).Message})
					continue
				}
				table.Append([]string{strconv.Itoa(r.Item), r.Value.ID, r.Value.Name, "ok"})
			}
			table.Render()

			if failed := pool.Errors(results); len(failed) > 0 {
				for _, e := range failed {
					log.Warn().Err(e).Msg("Import failed")
				}
				return clierr.New(clierr.Internal, fmt.Sprintf("%d of %d imports failed.", len(failed), len(results)), failed[0])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 5, "Number of imports to run at once [1-20]")
	return cmd
}

func printGame(cmd *cobra.Command, g *client.Game) {
	cmd.Println("Game Information:")
	cmd.Printf("ID: %s\n", g.ID)
	cmd.Printf("Name: %s\n", g.Name)
	if g.YearPublished > 0 {
		cmd.Printf("Year: %d\n", g.YearPublished)
	}
	if g.BggID > 0 {
		cmd.Printf("BGG ID: %d\n", g.BggID)
	}
	if g.MinPlayers > 0 {
		cmd.Printf("Players: %d-%d\n", g.MinPlayers, g.MaxPlayers)
	}
	if g.IsExpansion {
		base := "unknown"
		if g.BaseGameBggID != nil {
			base = strconv.Itoa(*g.BaseGameBggID)
		}
		cmd.Printf("Expansion of BGG ID: %s\n", base)
	}
	if len(g.Categories) > 0 {
		cmd.Printf("Categories: %s\n", strings.Join(g.Categories, ", "))
	}
}

func printSuggestions(cmd *cobra.Command, hits []client.GameSuggestion) {
	if len(hits) == 0 {
		cmd.Println("No games found.")
		return
	}
	table := newTable(cmd.OutOrStdout(), "BGG ID", "Name", "Year")
	for _, h := range hits {
		year := "-"
		if h.YearPublished > 0 {
			year = strconv.Itoa(h.YearPublished)
		}
		table.Append([]string{strconv.Itoa(h.BggID), h.Name, year})
	}
	table.Render()
}
