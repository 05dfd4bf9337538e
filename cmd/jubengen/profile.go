// cmd/jubengen/profile.go
package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/di"
	"github.com/jubenlab/jubengen/internal/services"
)

func getProfile(c *di.Container) *services.ProfileService {
	return c.Get("profile").(*services.ProfileService)
}

func getConstraints(c *di.Container) *services.ConstraintsService {
	return c.Get("constraints").(*services.ConstraintsService)
}

func newProfileCmd() *cobra.Command {
	var (
		scripts []string
		genre   string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "从样例剧本提取风格画像与目标区间（JSON）",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildOfflineServices()
			if err != nil {
				return err
			}

			profile, err := getProfile(container).BuildCombinedProfile(scripts, genre)
			if err != nil {
				return err
			}

			fs := getStorage(container)
			if err := fs.SaveJSONFile(outDir, "style_profile.json", profile); err != nil {
				return err
			}
			cmd.Printf("OK: %s\n", filepath.Join(fs.BaseDir, outDir, "style_profile.json"))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scripts, "scripts", nil, "样例剧本路径（可多个）")
	cmd.Flags().StringVar(&genre, "genre", "", "题材标识（可选）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	cmd.MarkFlagRequired("scripts")

	return cmd
}

func newConstraintsCmd() *cobra.Command {
	var (
		scripts []string
		genre   string
		outDir  string
		rf      rulesFlags
	)

	cmd := &cobra.Command{
		Use:   "constraints",
		Short: "融合样例剧本与规则文本，生成可执行约束（JSON + MD）",
		RunE: func(cmd *cobra.Command, args []string) error {
			adaptRules, err := rf.load()
			if err != nil {
				return err
			}

			container, err := buildOfflineServices()
			if err != nil {
				return err
			}

			_, err = getConstraints(container).SaveConstraints(services.ConstraintsOptions{
				SampleScripts: scripts,
				Rules:         adaptRules,
				Genre:         genre,
			}, outDir, "constraints.fused.json", "style_guide.md")
			if err != nil {
				return err
			}

			fs := getStorage(container)
			cmd.Printf("OK: %s\n", filepath.Join(fs.BaseDir, outDir, "constraints.fused.json"))
			cmd.Printf("OK: %s\n", filepath.Join(fs.BaseDir, outDir, "style_guide.md"))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scripts, "scripts", nil, "样例剧本路径（可多个）")
	cmd.Flags().StringVar(&genre, "genre", "", "题材标识（可选）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	rf.register(cmd)

	return cmd
}
