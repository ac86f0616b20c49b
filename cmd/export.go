package cmd

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/platemetrics/review-crawler/internal/export"
)

// newExportCmd creates the 'export' subcommand, which dumps the stored
// restaurants and reviews to CSV files.
func newExportCmd() *cobra.Command {
	var (
		restaurantsFile string
		reviewsFile     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports stored restaurants and reviews to CSV files",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config
			if cfg.DB.Provider != "postgres" {
				return fmt.Errorf("export requires db.provider postgres, got %q", cfg.DB.Provider)
			}

			pool, err := pgxpool.New(cmd.Context(), cfg.DB.DSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			exporter, err := export.New(pool)
			if err != nil {
				return err
			}

			rf, err := os.Create(restaurantsFile)
			if err != nil {
				return fmt.Errorf("create %s: %w", restaurantsFile, err)
			}
			defer rf.Close()
			nRestaurants, err := exporter.Restaurants(cmd.Context(), rf)
			if err != nil {
				return fmt.Errorf("export restaurants: %w", err)
			}

			vf, err := os.Create(reviewsFile)
			if err != nil {
				return fmt.Errorf("create %s: %w", reviewsFile, err)
			}
			defer vf.Close()
			nReviews, err := exporter.Reviews(cmd.Context(), vf)
			if err != nil {
				return fmt.Errorf("export reviews: %w", err)
			}

			appInstance.Logger.Info("export finished",
				zap.Int("restaurants", nRestaurants),
				zap.String("restaurants_file", restaurantsFile),
				zap.Int("reviews", nReviews),
				zap.String("reviews_file", reviewsFile),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d restaurants to %s and %d reviews to %s\n",
				nRestaurants, restaurantsFile, nReviews, reviewsFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&restaurantsFile, "restaurants", "restaurants.csv", "output file for restaurants")
	cmd.Flags().StringVar(&reviewsFile, "reviews", "reviews.csv", "output file for reviews")

	return cmd
}
