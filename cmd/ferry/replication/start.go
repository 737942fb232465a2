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
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferry-db/ferry/admin"
	"github.com/ferry-db/ferry/api/types"
)

var (
	flagContinuous   bool
	flagCreateTarget bool
	flagFilterKind   string
	flagFilterTypes  string
)

func newStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [source] [target]",
		Short: "Start a replication task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagFilterTypes != "" && flagFilterKind == "" {
				return errors.New("--filter-types requires --filter-kind")
			}

			req := &types.StartReplicationRequest{
				Source:       args[0],
				Target:       args[1],
				Continuous:   flagContinuous,
				CreateTarget: flagCreateTarget,
			}
			if flagFilterKind != "" {
				req.Filter = &types.FilterSpec{Kind: flagFilterKind}
				if flagFilterTypes != "" {
					req.Filter.Params = map[string]string{"types": flagFilterTypes}
				}
			}

			cli := admin.Dial(viper.GetString("adminAddr"))
			task, err := cli.StartReplication(context.Background(), req)
			if err != nil {
				return err
			}

			cmd.Printf("started %s (%s)\n", task.ReplicationID, task.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(
		&flagContinuous,
		"continuous",
		false,
		"Keep following the source's change feed until stopped",
	)
	cmd.Flags().BoolVar(
		&flagCreateTarget,
		"create-target",
		false,
		"Create the target database before replicating",
	)
	cmd.Flags().StringVar(
		&flagFilterKind,
		"filter-kind",
		"",
		"Filter kind, e.g. entity_type",
	)
	cmd.Flags().StringVar(
		&flagFilterTypes,
		"filter-types",
		"",
		"Comma-separated type or type.subtype tokens for the entity_type filter",
	)
	return cmd
}

func init() {
	SubCmd.AddCommand(newStartCommand())
}
