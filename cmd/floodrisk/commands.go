package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"flood-risk-aggregator/internal/config"
	"flood-risk-aggregator/internal/models"
	"flood-risk-aggregator/internal/registry"
	"flood-risk-aggregator/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "floodrisk",
		Short:        "Assess flood risk and list flood alerts for Vietnamese locations",
		SilenceUsage: true,
	}
	root.AddCommand(newAssessCmd(logger), newAlertsCmd(logger), newProvincesCmd())
	return root
}

func newAssessCmd(logger *zap.Logger) *cobra.Command {
	var (
		loc      models.Location
		deadline time.Duration
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Compute the flood risk assessment for a coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			if deadline > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, deadline)
				defer cancel()
			}

			assessment, err := svc.Risk.AssessFloodRisk(ctx, loc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), assessment)
		},
	}

	cmd.Flags().Float64Var(&loc.Latitude, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&loc.Longitude, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().StringVar(&loc.Name, "name", "", "display name of the location")
	cmd.Flags().StringVar(&loc.Province, "province", "", "province used for registry lookups")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "overall deadline, shorter than the configured one")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func newAlertsCmd(logger *zap.Logger) *cobra.Command {
	var province string

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List active flood alerts for a province",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.Alerts.GetFloodAlerts(cmd.Context(), province)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&province, "province", "", "province name, e.g. Hanoi")
	_ = cmd.MarkFlagRequired("province")

	return cmd
}

func newProvincesCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "provinces",
		Short: "List the provinces known to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := registry.Load(seedFile)
			if err != nil {
				return err
			}
			provinces := make([]models.Location, 0)
			for _, name := range dir.Names() {
				if loc, ok := dir.Resolve(name); ok {
					provinces = append(provinces, loc)
				}
			}
			return printJSON(cmd.OutOrStdout(), provinces)
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML seed file; defaults to the embedded directory")

	return cmd
}

func loadService(logger *zap.Logger) (*services.Service, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	svc, err := services.NewService(cfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing services: %w", err)
	}
	return svc, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
