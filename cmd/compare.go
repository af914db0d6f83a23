package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/terrastat/landsig/internal/boundary"
	"github.com/terrastat/landsig/internal/cluster"
	"github.com/terrastat/landsig/internal/divergence"
	"github.com/terrastat/landsig/internal/export"
	"github.com/terrastat/landsig/internal/model"
	"github.com/terrastat/landsig/internal/palette"
	"github.com/terrastat/landsig/internal/raster"
	"github.com/terrastat/landsig/internal/signature"
)

var compareCmd = &cobra.Command{
	Use:   "compare <raster-a> <raster-b>",
	Short: "Compare two land-cover rasters",
	Long:  "Tiles both rasters, builds per-tile category signatures, computes the pairwise Jensen-Shannon divergence matrix, and reports the most distinctive tile on each side.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("compare"); err != nil {
			return err
		}

		params := model.RunParams{
			SourceA: args[0],
			SourceB: args[1],
			Window:  cfg.Compare.Window,
			Policy:  cfg.Compare.Policy,
			Workers: cfg.Compare.Workers,
		}
		if v, _ := cmd.Flags().GetInt("window"); v > 0 {
			params.Window = v
		}
		if v, _ := cmd.Flags().GetString("policy"); v != "" {
			params.Policy = v
		}
		if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
			params.Workers = v
		}
		params.BoundaryA, _ = cmd.Flags().GetString("boundary-a")
		params.BoundaryB, _ = cmd.Flags().GetString("boundary-b")
		params.K, _ = cmd.Flags().GetInt("k")

		noStore, _ := cmd.Flags().GetBool("no-store")
		out, _ := cmd.Flags().GetString("out")

		var runID string
		if !noStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			run, err := st.CreateRun(ctx, params)
			if err != nil {
				return err
			}
			runID = run.ID
			if err := st.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
				return err
			}

			cmp, err := runComparison(ctx, params)
			if err != nil {
				if ferr := st.FailRun(ctx, runID, err.Error()); ferr != nil {
					zap.L().Error("mark run failed failed", zap.Error(ferr))
				}
				return err
			}
			if err := st.CompleteRun(ctx, runID, cmp.summary); err != nil {
				return err
			}
			return finishCompare(cmp, runID, out)
		}

		cmp, err := runComparison(ctx, params)
		if err != nil {
			return err
		}
		return finishCompare(cmp, "", out)
	},
}

func init() {
	compareCmd.Flags().Int("window", 0, "tile edge in cells (default from config)")
	compareCmd.Flags().String("policy", "", "missing-data policy: exclude or overlap (default from config)")
	compareCmd.Flags().Int("workers", 0, "parallel matrix rows (default from config)")
	compareCmd.Flags().Int("k", 0, "also cluster region A tiles into k groups")
	compareCmd.Flags().String("boundary-a", "", "shapefile restricting region A tiles")
	compareCmd.Flags().String("boundary-b", "", "shapefile restricting region B tiles")
	compareCmd.Flags().String("out", "", "write results to an XLSX workbook")
	compareCmd.Flags().Bool("no-store", false, "skip recording the run")
	rootCmd.AddCommand(compareCmd)
}

// comparison bundles the pipeline outputs a command needs after the math.
type comparison struct {
	res     *divergence.Result
	a, b    *signature.Collection
	pal     *palette.Palette
	summary *model.RunSummary
}

// runComparison executes the full pipeline for the given params: read both
// rasters, tile them into signatures, compare, and optionally cluster.
func runComparison(ctx context.Context, params model.RunParams) (*comparison, error) {
	gridA, err := raster.ReadASCIIFile(params.SourceA)
	if err != nil {
		return nil, err
	}
	gridB, err := raster.ReadASCIIFile(params.SourceB)
	if err != nil {
		return nil, err
	}

	var pal *palette.Palette
	var codes []int16
	if cfg.Compare.Palette != "" {
		pal, err = palette.ReadFile(cfg.Compare.Palette)
		if err != nil {
			return nil, err
		}
		codes = pal.Codes()
	} else {
		codes = raster.Codes(gridA, gridB)
	}
	cs, err := raster.NewCategorySet(codes)
	if err != nil {
		return nil, err
	}

	policy := signature.MissingPolicy(params.Policy)
	colA, err := tileCollection(gridA, cs, params.Window, policy, params.BoundaryA)
	if err != nil {
		return nil, eris.Wrapf(err, "region A (%s)", params.SourceA)
	}
	colB, err := tileCollection(gridB, cs, params.Window, policy, params.BoundaryB)
	if err != nil {
		return nil, eris.Wrapf(err, "region B (%s)", params.SourceB)
	}

	zap.L().Info("signatures built",
		zap.Int("tiles_a", colA.Len()),
		zap.Int("tiles_b", colB.Len()),
		zap.Int("excluded_a", colA.ExcludedMissing+colA.ExcludedInvalid),
		zap.Int("excluded_b", colB.ExcludedMissing+colB.ExcludedInvalid),
		zap.Int("categories", cs.Len()),
	)

	res, err := divergence.Compare(ctx, colA, colB, divergence.Options{Workers: params.Workers})
	if err != nil {
		return nil, err
	}

	summary := summarize(res)
	if params.K > 0 {
		cl, err := cluster.KMedoids(ctx, colA, params.K, divergence.Options{Workers: params.Workers})
		if err != nil {
			return nil, err
		}
		summary.ClusterK = params.K
		summary.ClusterCost = cl.Cost
		summary.Medoids = cl.Medoids
	}
	summary.TilesA = colA.Len()
	summary.TilesB = colB.Len()

	return &comparison{res: res, a: colA, b: colB, pal: pal, summary: summary}, nil
}

// tileCollection reads one region into a signature collection, masked by an
// optional boundary shapefile.
func tileCollection(g *raster.Grid, cs *raster.CategorySet, window int, policy signature.MissingPolicy, boundaryPath string) (*signature.Collection, error) {
	opts := raster.TileOptions{Window: window}
	if boundaryPath != "" {
		b, err := boundary.LoadShapefile(boundaryPath, "NAME")
		if err != nil {
			return nil, err
		}
		opts.Mask = b.Mask()
	}
	tiles := raster.Tile(g, cs, opts)
	return signature.FromCounts(tiles, cs.Len(), signature.Options{Policy: policy})
}

func summarize(res *divergence.Result) *model.RunSummary {
	s := &model.RunSummary{
		ExcludedA: res.ExcludedA,
		ExcludedB: res.ExcludedB,
		ExtremalA: model.ExtremalTile{
			Index:    res.ExtremalA.Index,
			Row:      res.ExtremalA.Tile.Row,
			Col:      res.ExtremalA.Tile.Col,
			Distance: res.ExtremalA.Distance,
		},
		ExtremalB: model.ExtremalTile{
			Index:    res.ExtremalB.Index,
			Row:      res.ExtremalB.Tile.Row,
			Col:      res.ExtremalB.Tile.Col,
			Distance: res.ExtremalB.Distance,
		},
	}
	if len(res.RowMin) > 0 {
		s.RowMinMean = floats.Sum(res.RowMin) / float64(len(res.RowMin))
	}
	if len(res.ColMin) > 0 {
		s.ColMinMean = floats.Sum(res.ColMin) / float64(len(res.ColMin))
	}
	return s
}

// finishCompare writes the optional workbook and prints the result table.
func finishCompare(cmp *comparison, runID, out string) error {
	if out != "" {
		if err := export.WriteResult(out, cmp.res, cmp.a, cmp.b, export.Options{Palette: cmp.pal}); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("path", out))
	}
	printComparison(cmp, runID)
	return nil
}

func printComparison(cmp *comparison, runID string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if runID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", runID)
	}
	s := cmp.summary
	_, _ = fmt.Fprintf(w, "Tiles A:\t%d (%d excluded)\n", s.TilesA, s.ExcludedA)
	_, _ = fmt.Fprintf(w, "Tiles B:\t%d (%d excluded)\n", s.TilesB, s.ExcludedB)
	_, _ = fmt.Fprintf(w, "Extremal A:\tr%dc%d\tJSD %.4f\n", s.ExtremalA.Row, s.ExtremalA.Col, s.ExtremalA.Distance)
	_, _ = fmt.Fprintf(w, "Extremal B:\tr%dc%d\tJSD %.4f\n", s.ExtremalB.Row, s.ExtremalB.Col, s.ExtremalB.Distance)
	_, _ = fmt.Fprintf(w, "Row-min mean:\t%.4f\n", s.RowMinMean)
	_, _ = fmt.Fprintf(w, "Col-min mean:\t%.4f\n", s.ColMinMean)
	if s.ClusterK > 0 {
		_, _ = fmt.Fprintf(w, "Clusters:\tk=%d\tcost %.4f\n", s.ClusterK, s.ClusterCost)
	}
	_ = w.Flush()
}
