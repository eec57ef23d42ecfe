package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/testtag/config"
	"github.com/c360studio/testtag/processor/ast"
	"github.com/c360studio/testtag/recipe"
)

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Describe the tagging rule and the supported languages",
		Run: func(cmd *cobra.Command, args []string) {
			r := recipe.New()
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "%s\n%s\n\n%s\n\n", r.Name(), r.DisplayName(), r.Description())
			fmt.Fprintf(w, "Integration markers:\n")
			for _, m := range recipe.IntegrationMarkers() {
				fmt.Fprintf(w, "  @%s\n", m)
			}
			fmt.Fprintf(w, "\nHosts: %s\n", strings.Join(ast.DefaultRegistry.ListHosts(), ", "))
			fmt.Fprintf(w, "Extensions: %s\n", strings.Join(ast.DefaultRegistry.ListExtensions(), ", "))
		},
	}
}

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(newLogger(cmd.ErrOrStderr(), g.logLevel)).EnsureUserConfig()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, g, args)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	})

	return cmd
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
