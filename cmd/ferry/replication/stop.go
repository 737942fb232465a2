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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferry-db/ferry/admin"
)

var flagStopContinuous bool

func newStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [source] [target]",
		Short: "Stop a running replication task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := admin.Dial(viper.GetString("adminAddr"))
			task, err := cli.StopReplication(context.Background(), args[0], args[1], flagStopContinuous)
			if err != nil {
				return err
			}

			cmd.Printf("stopping %s (%s)\n", task.ReplicationID, task.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(
		&flagStopContinuous,
		"continuous",
		false,
		"Match the continuous variant of the task",
	)
	return cmd
}

func init() {
	SubCmd.AddCommand(newStopCommand())
}
