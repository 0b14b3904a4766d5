package main

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON for scripts consuming --json output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTOML prints v in the configuration file syntax.
func writeTOML(cmd *cobra.Command, v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
