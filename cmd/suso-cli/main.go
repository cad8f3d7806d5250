// suso-cli：单个区域的本地调试工具，直接调用与服务端相同的推导流程
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"suso-stats/internal/config"
	"suso-stats/internal/earthengine"
	"suso-stats/internal/layers"
	"suso-stats/internal/logger"
	"suso-stats/internal/stats"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

func main() {
	config.LoadDotEnv()
	logger.Setup()

	var project, thresholdsFile string
	rootCmd := &cobra.Command{
		Use:          "suso-cli",
		Short:        "Land-cover area statistics for a single GeoJSON region",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&project, "project", "", "cloud project (default $PROJECT or $GOOGLE_CLOUD_PROJECT)")
	rootCmd.PersistentFlags().StringVar(&thresholdsFile, "thresholds", "", "YAML thresholds file (default $THRESHOLDS_FILE)")

	load := func() (config.Config, error) {
		cfg, err := config.FromEnv()
		if err != nil {
			return cfg, err
		}
		if project != "" {
			cfg.Project = project
		}
		if thresholdsFile != "" {
			cfg.ThresholdsFile = thresholdsFile
		}
		return cfg, nil
	}

	rootCmd.AddCommand(deriveCmd(load))
	rootCmd.AddCommand(probabilitiesCmd(load))
	rootCmd.AddCommand(thresholdsCmd(load))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type loader func() (config.Config, error)

func deriveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "derive [file|-]",
		Short: "Print per-class areas and the heterogeneity index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, g, err := setup(cmd.Context(), load, args[0])
			if err != nil {
				return err
			}
			m, err := d.Derive(cmd.Context(), g)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func probabilitiesCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "probabilities [file|-]",
		Short: "Print the mean of each probability band",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, g, err := setup(cmd.Context(), load, args[0])
			if err != nil {
				return err
			}
			p, err := d.Probabilities(cmd.Context(), g)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func thresholdsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Print the effective class thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			th, err := cfg.Thresholds()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), th)
		},
	}
}

// setup：读取几何并构建推导器；几何先于会话校验，避免无效输入触发凭证探测
func setup(ctx context.Context, load loader, path string) (*stats.Deriver, orb.Geometry, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := stats.ParseGeometry(raw)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := load()
	if err != nil {
		return nil, nil, err
	}
	th, err := cfg.Thresholds()
	if err != nil {
		return nil, nil, err
	}
	client, err := earthengine.New(ctx, cfg.EarthEngine())
	if err != nil {
		return nil, nil, err
	}
	return stats.NewDeriver(stats.NewRemoteSource(client, layers.NewCatalog(th)), cfg.Retry), g, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
