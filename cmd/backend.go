package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bz888/agentchat/internal/speech"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the agent backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the agent backend can use",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List microphones usable with --input-device",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(healthCmd, modelsCmd, devicesCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	resp, err := client.HealthCheck(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("backend at %s is unreachable: %w", client.BaseURL(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Status, resp.Message)
	return nil
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	models, err := client.ListModels(cmdContext(cmd))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tDESCRIPTION")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.Provider, m.Description)
	}
	return w.Flush()
}

func runDevices(cmd *cobra.Command, _ []string) error {
	devices, err := speech.InputDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Fprintf(cmd.OutOrStdout(), "ID: %d, Name: %s, MaxInputChannels: %d, Sample rate: %f\n",
			d.ID, d.Name, d.Channels, d.SampleRate)
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
