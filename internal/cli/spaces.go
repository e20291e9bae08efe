package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSpacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spaces",
		Short: "List spaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/rest/api/space", nil)
			if err != nil {
				return fmt.Errorf("list spaces: %w", err)
			}

			envelope, ok := resp.JSON.(map[string]any)
			if !ok {
				return fmt.Errorf("unexpected space response shape")
			}
			results, _ := envelope["results"].([]any)

			if len(results) == 0 {
				fmt.Println("No spaces found.")
				return nil
			}

			fmt.Printf("%-12s  %s\n", "KEY", "TYPE")
			fmt.Printf("%-12s  %s\n", "---", "----")
			for _, raw := range results {
				space, _ := raw.(map[string]any)
				key, _ := space["key"].(string)
				kind, _ := space["type"].(string)
				fmt.Printf("%-12s  %s\n", key, kind)
			}
			return nil
		},
	}
}
