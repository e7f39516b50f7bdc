package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"server-actions/backend/internal/ops"
)

func newActionsCommand() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the server's entry points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			entries, err := fetchCatalogue(ctx, http.DefaultClient, url)
			if err != nil {
				return err
			}
			renderCatalogue(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:9090", "Ops HTTP base URL")
	return cmd
}

func fetchCatalogue(ctx context.Context, client *http.Client, baseURL string) ([]ops.CatalogueEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/actions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /actions returned %s", resp.Status)
	}
	var entries []ops.CatalogueEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	return entries, nil
}

func renderCatalogue(w io.Writer, entries []ops.CatalogueEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Action", "Public", "Input", "Description"})
	for _, e := range entries {
		fields := make([]string, 0, len(e.Input))
		for _, f := range e.Input {
			s := f.Name + ":" + f.Type
			if f.Required {
				s += "*"
			}
			fields = append(fields, s)
		}
		public := ""
		if e.Public {
			public = "yes"
		}
		t.AppendRow(table.Row{e.Name, public, strings.Join(fields, " "), e.Description})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
