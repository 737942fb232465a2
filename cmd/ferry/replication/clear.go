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

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [task id]",
		Short: "Remove a finished replication task record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := admin.Dial(viper.GetString("adminAddr"))
			if err := cli.ClearReplication(context.Background(), args[0]); err != nil {
				return err
			}

			cmd.Printf("cleared %s\n", args[0])
			return nil
		},
	}
}

func init() {
	SubCmd.AddCommand(newClearCommand())
}
