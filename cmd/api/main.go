package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/atharvakonge/market-game/internal/config"
	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// rootCmd runs the server when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "market-game",
	Short: "Multiplayer market trading game",
	Long: `market-game runs a simulated commodity market played over Telegram and
HTTP: participants trade products, found companies, invite friends and
compete on the wealth ranking while random market events move prices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the event generator and the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply the schema and load the product catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := db.Seed(cmd.Context(), store, db.Catalog)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d of %d products\n", n, len(db.Catalog))
		return nil
	},
}

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Print the wealth ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := engine.New(store, nil, engine.Options{}).Ranking(cmd.Context())
		if err != nil {
			return err
		}
		printRanking(entries)
		return nil
	},
}

func printRanking(entries []engine.RankEntry) {
	if len(entries) == 0 {
		color.Yellow("No participants yet.")
		return
	}
	header := color.New(color.Bold)
	leader := color.New(color.FgGreen, color.Bold)
	header.Println("User ranking:")
	for _, e := range entries {
		line := fmt.Sprintf("%d. %s: %s units", e.Position, e.Username, models.FormatMoney(e.Wealth))
		if e.Position == 1 {
			leader.Println(line)
			continue
		}
		fmt.Println(line)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(rankingCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
