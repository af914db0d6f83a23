package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrastat/landsig/internal/cluster"
	"github.com/terrastat/landsig/internal/divergence"
	"github.com/terrastat/landsig/internal/palette"
	"github.com/terrastat/landsig/internal/raster"
	"github.com/terrastat/landsig/internal/signature"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <raster>",
	Short: "Group a raster's tiles by signature similarity",
	Long:  "Tiles one raster, computes its self-divergence matrix, and partitions the tiles into k groups around medoid tiles.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cluster"); err != nil {
			return err
		}

		k := cfg.Cluster.K
		if v, _ := cmd.Flags().GetInt("k"); v > 0 {
			k = v
		}
		window := cfg.Compare.Window
		if v, _ := cmd.Flags().GetInt("window"); v > 0 {
			window = v
		}
		boundaryPath, _ := cmd.Flags().GetString("boundary")

		g, err := raster.ReadASCIIFile(args[0])
		if err != nil {
			return err
		}

		var codes []int16
		if cfg.Compare.Palette != "" {
			pal, err := palette.ReadFile(cfg.Compare.Palette)
			if err != nil {
				return err
			}
			codes = pal.Codes()
		} else {
			codes = raster.Codes(g)
		}
		cs, err := raster.NewCategorySet(codes)
		if err != nil {
			return err
		}

		col, err := tileCollection(g, cs, window, signature.MissingPolicy(cfg.Compare.Policy), boundaryPath)
		if err != nil {
			return err
		}
		zap.L().Info("signatures built", zap.Int("tiles", col.Len()), zap.Int("categories", cs.Len()))

		res, err := cluster.KMedoids(ctx, col, k, divergence.Options{Workers: cfg.Compare.Workers})
		if err != nil {
			return err
		}

		printClusters(col, res)
		return nil
	},
}

func init() {
	clusterCmd.Flags().Int("k", 0, "number of clusters (default from config)")
	clusterCmd.Flags().Int("window", 0, "tile edge in cells (default from config)")
	clusterCmd.Flags().String("boundary", "", "shapefile restricting the tiles")
	rootCmd.AddCommand(clusterCmd)
}

func printClusters(col *signature.Collection, res *cluster.Result) {
	sizes := make([]int, len(res.Medoids))
	for _, m := range res.Assignments {
		sizes[m]++
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLUSTER\tMEDOID\tTILES")
	for i, medoid := range res.Medoids {
		id := col.At(medoid).Tile
		_, _ = fmt.Fprintf(w, "%d\tr%dc%d\t%d\n", i, id.Row, id.Col, sizes[i])
	}
	_, _ = fmt.Fprintf(w, "Total cost:\t%.4f\n", res.Cost)
	_ = w.Flush()
}
