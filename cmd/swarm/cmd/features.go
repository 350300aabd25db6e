package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swarm/config"
	"github.com/rustyeddy/swarm/market"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Manage feature snapshots",
	Long: `Work with the feature snapshots the live loop reads.

Subcommands:
  publish - Write snapshots to the configured Redis feature store

Examples:
  swarm features publish --config swarm.yaml
  swarm features publish --config swarm.yaml --asset BTC/USDT --set price=64000 --set rsi_14=58`,
}

var featuresPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish feature snapshots to Redis",
	Long: `Publish feature snapshots to the Redis store named in the config.

With --set the given values are published for --asset. Without it every
static snapshot in the config is published.`,
	Args: cobra.NoArgs,
	RunE: runFeaturesPublish,
}

var (
	featuresConfigPath string
	featuresAsset      string
	featuresSet        []string
)

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.AddCommand(featuresPublishCmd)

	featuresPublishCmd.Flags().StringVarP(&featuresConfigPath, "config", "c", "", "path to config file (required)")
	featuresPublishCmd.Flags().StringVar(&featuresAsset, "asset", "", "asset to publish with --set")
	featuresPublishCmd.Flags().StringArrayVar(&featuresSet, "set", nil, "feature value as name=number (repeatable)")
	featuresPublishCmd.MarkFlagRequired("config")
}

func runFeaturesPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(featuresConfigPath)
	if err != nil {
		return err
	}
	snaps, err := featureSnapshots(cfg.Features.Static, featuresAsset, featuresSet, time.Now().UTC())
	if err != nil {
		return err
	}

	log, err := cliLogger()
	if err != nil {
		return err
	}
	src, err := redisSource(cfg.Features.Redis, log)
	if err != nil {
		return err
	}
	defer src.Close()

	for _, f := range snaps {
		if err := src.Publish(cmd.Context(), f); err != nil {
			return fmt.Errorf("publish %s: %w", f.Asset, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %d features to %s\n", len(f.Values), src.Key(f.Asset))
	}
	return nil
}

// featureSnapshots builds the snapshots to publish, sorted by asset.
func featureSnapshots(static map[string]map[string]float64, asset string, sets []string, now time.Time) ([]market.Features, error) {
	if len(sets) > 0 {
		if asset == "" {
			return nil, errors.New("--set needs --asset")
		}
		vals, err := parseFeatureValues(sets)
		if err != nil {
			return nil, err
		}
		static = map[string]map[string]float64{asset: vals}
	} else if asset != "" {
		vals, ok := static[asset]
		if !ok {
			return nil, fmt.Errorf("no static features for %s", asset)
		}
		static = map[string]map[string]float64{asset: vals}
	}
	if len(static) == 0 {
		return nil, errors.New("nothing to publish: no --set values and no static features")
	}

	assets := make([]string, 0, len(static))
	for a := range static {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	out := make([]market.Features, 0, len(assets))
	for _, a := range assets {
		f := market.NewFeatures(a, now)
		for k, v := range static[a] {
			f.Values[k] = v
		}
		out = append(out, f)
	}
	return out, nil
}

func parseFeatureValues(kvs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("feature %q: want name=number", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", kv, err)
		}
		out[k] = f
	}
	return out, nil
}
