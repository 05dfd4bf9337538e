// cmd/jubengen/genres.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/genres"
	"github.com/jubenlab/jubengen/internal/utils"
)

func newGenresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genres [name]",
		Short: "列出内置题材模板；带参数时输出单个模板详情",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				enToCN := make(map[string]string)
				for cn, en := range genres.ListCN() {
					enToCN[en] = cn
				}
				for _, en := range genres.List() {
					cmd.Printf("%s\t%s\n", en, enToCN[en])
				}
				return nil
			}

			tpl, err := genres.Load(args[0])
			if err != nil {
				return err
			}
			out, err := utils.JSONIndent(tpl)
			if err != nil {
				return err
			}
			cmd.Println(out)
			return nil
		},
	}
	return cmd
}
