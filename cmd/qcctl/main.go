package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"qcgallery/adapters/excel"
	"qcgallery/domain/inspection"
	"qcgallery/internal"
	"qcgallery/internal/config"
	"qcgallery/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	output string
}

func main() {
	_ = godotenv.Load()

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "qcctl",
		Short:         "Query factories, inspections and images from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "table", "Output format: table, json or csv")

	rootCmd.AddCommand(
		newFactoriesCmd(flags),
		newDefectsCmd(flags),
		newInspectionsCmd(flags),
		newImageCmd(),
		newSeedCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withContainer loads configuration, builds the container and closes it
// after fn returns.
func withContainer(ctx context.Context, fn func(*container.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c, err := container.New(ctx, cfg, internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func newFactoriesCmd(flags *globalFlags) *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "factories",
		Short: "List factories with their region and cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *container.Container) error {
				factories, err := c.Catalog.ListFactories(cmd.Context())
				if err != nil {
					return err
				}
				if region != "" {
					filtered := factories[:0:0]
					for _, f := range factories {
						if f.Region == region {
							filtered = append(filtered, f)
						}
					}
					factories = filtered
				}
				if flags.output == "json" {
					return writeJSON(cmd.OutOrStdout(), factories)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FACTORY\tREGION\tCAMERAS")
				for _, f := range factories {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", f.FactoryID, f.Region, strings.Join(f.Cameras, ","))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Only list factories in this region")
	return cmd
}

func newDefectsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "defects",
		Short: "List the defect types observed in inspection data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *container.Container) error {
				types, err := c.Catalog.ListDefectTypes(cmd.Context())
				if err != nil {
					return err
				}
				if flags.output == "json" {
					return writeJSON(cmd.OutOrStdout(), types)
				}
				for _, t := range types {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}
}

func newInspectionsCmd(flags *globalFlags) *cobra.Command {
	var params inspection.FilterParams
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "inspections",
		Short: "Query one page of inspections",
		Long: `Query one page of inspections, most recent first.

Unset filters, or filters set to "All", do not constrain the result.

Example: qcctl inspections --region WUH --prediction KO --date-from 2025-01-01 --page 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := params.Spec()
			if err != nil {
				return err
			}
			return withContainer(cmd.Context(), func(c *container.Container) error {
				res, err := c.Query.QueryPage(cmd.Context(), spec)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if xlsxPath != "" {
					f, err := os.Create(xlsxPath)
					if err != nil {
						return err
					}
					defer f.Close()
					if err := excel.NewExporter().WriteXLSX(f, res.Page, res.Stats, nil); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", xlsxPath)
				}
				switch flags.output {
				case "json":
					return writeJSON(out, res)
				case "csv":
					return excel.NewExporter().WriteCSV(out, res.Page)
				default:
					return printPage(out, res.Page, res.Stats)
				}
			})
		},
	}

	cmd.Flags().StringVar(&params.Region, "region", "", "Region")
	cmd.Flags().StringVar(&params.FactoryID, "factory", "", "Factory id")
	cmd.Flags().StringVar(&params.CameraID, "camera", "", "Camera id")
	cmd.Flags().StringVar(&params.Prediction, "prediction", "", "OK or KO")
	cmd.Flags().StringVar(&params.DefectType, "defect-type", "", "Defect type")
	cmd.Flags().StringVar(&params.SearchText, "search", "", "Substring of the inspection id")
	cmd.Flags().StringVar(&params.DateFrom, "date-from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&params.DateTo, "date-to", "", "Last day, YYYY-MM-DD")
	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.PageSize, "per-page", inspection.DefaultPageSize, "Rows per page (max 100)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the page to this .xlsx file")

	return cmd
}

func newImageCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "image [path]",
		Short: "Download one image by its volume path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *container.Container) error {
				img, err := c.Images.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					_, err = cmd.OutOrStdout().Write(img.Data)
					return err
				}
				if err := os.WriteFile(outPath, img.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s, %d bytes)\n", outPath, img.ContentType, len(img.Data))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "O", "", "Write to this file instead of stdout")
	return cmd
}

func printPage(w io.Writer, page inspection.Page, stats inspection.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSPECTION\tFACTORY\tCAMERA\tTIMESTAMP\tPRED\tCONF\tDEFECT")
	for _, it := range page.Items {
		defect := "-"
		if it.DefectType != nil {
			defect = *it.DefectType
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.4f\t%s\n",
			it.InspectionID, it.FactoryID, it.CameraID, it.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			it.Prediction, it.ConfidenceScore, defect)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\npage %d of %d, %d matching (%d OK, %d KO), %d total\n",
		page.Page, page.TotalPages, stats.TotalMatching, stats.OKCount, stats.KOCount, stats.TotalAll)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
