package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mirefly/docharbor/internal/source"
	"github.com/mirefly/docharbor/internal/store"
)

var (
	srcName      string
	srcBaseURL   string
	srcToken     string
	srcNamespace string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage configured knowledge-base sources",
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or update a source configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		srcCfg := source.Config{
			ID:        args[0],
			Name:      srcName,
			BaseURL:   srcBaseURL,
			Token:     srcToken,
			Namespace: srcNamespace,
		}
		if srcCfg.Name == "" {
			srcCfg.Name = srcCfg.ID
		}
		if err := srcCfg.Validate(); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
		st := store.New(c.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		if err := st.PutConfig(srcCfg.ID, srcCfg); err != nil {
			return err
		}
		fmt.Printf("✓ Source saved: %s (%s)\n", srcCfg.ID, srcCfg.BaseURL)
		return nil
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		st := store.New(c.DataDir)
		names, err := st.ListConfigs()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("(no sources configured)")
			return nil
		}
		sort.Strings(names)
		for _, name := range names {
			var srcCfg source.Config
			if err := st.GetConfig(name, &srcCfg); err != nil {
				return err
			}
			fmt.Printf("- %s: %s %s/%s\n", srcCfg.ID, srcCfg.Name, srcCfg.BaseURL, srcCfg.Namespace)
		}
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a source configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		st := store.New(c.DataDir)
		if err := st.DeleteConfig(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Source removed: %s\n", args[0])
		return nil
	},
}

func init() {
	sourcesAddCmd.Flags().StringVar(&srcName, "name", "", "display name (defaults to the id)")
	sourcesAddCmd.Flags().StringVar(&srcBaseURL, "url", "", "remote API base URL (required)")
	sourcesAddCmd.Flags().StringVar(&srcToken, "token", "", "API token")
	sourcesAddCmd.Flags().StringVar(&srcNamespace, "namespace", "", "remote repo/book identifier, e.g. team/handbook (required)")
	_ = sourcesAddCmd.MarkFlagRequired("url")
	_ = sourcesAddCmd.MarkFlagRequired("namespace")

	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
}
