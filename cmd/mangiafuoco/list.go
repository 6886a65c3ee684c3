package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List configured display devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Name", "Location"})
			for _, d := range cfg.Devices {
				t.AppendRow(table.Row{d.Name, d.Location})
			}
			t.Render()
			return nil
		},
	}
}

func serversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List configured feed servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Name", "Base URL", "Authenticated"})
			for _, s := range cfg.FeedServers {
				t.AppendRow(table.Row{s.Name, s.BaseURL, s.APIKey != ""})
			}
			t.Render()
			return nil
		},
	}
}
