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

// Package main is the entry point of the Ferry CLI.
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferry-db/ferry/cmd/ferry/replication"
	"github.com/ferry-db/ferry/server"
)

var rootCmd = &cobra.Command{
	Use:   "ferry",
	Short: "Checkpointed document replication between stores",
}

// Run executes CLI.
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}

func init() {
	rootCmd.AddCommand(replication.SubCmd)
	rootCmd.PersistentFlags().String(
		"admin-addr",
		server.NewConfig().AdminAddr(),
		"Address of the admin server",
	)
	_ = viper.BindPFlag("adminAddr", rootCmd.PersistentFlags().Lookup("admin-addr"))
	viper.SetEnvPrefix("ferry")
	_ = viper.BindEnv("adminAddr", "FERRY_ADMIN_ADDR")
}
