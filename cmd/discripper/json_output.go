package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"discripper/internal/api"
	"discripper/internal/store"
)

// addJSONFlag registers --json. JSON output reuses the api response types,
// so scripts read the same documents the HTTP API serves.
func addJSONFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "json", false, "Print JSON in the API response format")
}

// writeJSON prints v as indented JSON. Library paths are left unescaped.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJobsJSON(cmd *cobra.Command, list []*store.Job, now time.Time) error {
	items := make([]api.JobItem, 0, len(list))
	for _, job := range list {
		items = append(items, api.FromJob(job, nil, now))
	}
	return writeJSON(cmd, api.JobListResponse{Jobs: items})
}
