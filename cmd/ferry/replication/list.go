/*
 * Copyright 2026 The Ferry Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package replication

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferry-db/ferry/admin"
)

var (
	flagListSource string
	flagListTarget string
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List replication tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := admin.Dial(viper.GetString("adminAddr"))
			tasks, err := cli.ListReplications(context.Background(), flagListSource, flagListTarget)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				cmd.Println("No active replications")
				return nil
			}

			tw := table.NewWriter()
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.Style().Options.SeparateFooter = false
			tw.Style().Options.SeparateHeader = false
			tw.Style().Options.SeparateRows = false
			tw.AppendHeader(table.Row{
				"SOURCE",
				"TARGET",
				"STARTED ON",
				"STATUS",
				"WRITTEN",
				"SKIPPED",
				"CONFLICTS",
				"LAST ERROR",
			})
			for _, task := range tasks {
				tw.AppendRow(table.Row{
					task.Source,
					task.Target,
					task.StartedOn,
					task.Status,
					task.DocsWritten,
					task.DocsSkipped,
					task.Conflicts,
					task.LastError,
				})
			}
			cmd.Printf("%s\n", tw.Render())

			return nil
		},
	}

	cmd.Flags().StringVar(
		&flagListSource,
		"source",
		"",
		"Narrow the listing to tasks reading from this endpoint",
	)
	cmd.Flags().StringVar(
		&flagListTarget,
		"target",
		"",
		"Narrow the listing to tasks writing to this endpoint",
	)
	return cmd
}

func init() {
	SubCmd.AddCommand(newListCommand())
}
