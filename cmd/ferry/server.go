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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferry-db/ferry/server"
	"github.com/ferry-db/ferry/server/backend/database/mongo"
	"github.com/ferry-db/ferry/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	retryBaseInterval   time.Duration
	retryMaxInterval    time.Duration
	storeConnectTimeout time.Duration
	storeRequestTimeout time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoFerryDatabase     string
	mongoPingTimeout       time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Ferry server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Backend.RetryBaseInterval = retryBaseInterval.String()
			conf.Backend.RetryMaxInterval = retryMaxInterval.String()
			conf.Backend.StoreConnectTimeout = storeConnectTimeout.String()
			conf.Backend.StoreRequestTimeout = storeRequestTimeout.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					FerryDatabase:     mongoFerryDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			f, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := f.Start(); err != nil {
				return err
			}

			if code := handleSignal(f); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(r *server.Ferry) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-r.ShutdownCh():
		// ferry is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := r.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.Admin.Port,
		"admin-port",
		server.DefaultAdminPort,
		"Admin port",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.BatchSize,
		"backend-batch-size",
		server.DefaultBatchSize,
		"Number of change events transferred between checkpoint writes.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.RetryMaxAttempts,
		"backend-retry-max-attempts",
		server.DefaultRetryMaxAttempts,
		"Maximum retries of a transient store failure before the task fails.",
	)
	cmd.Flags().DurationVar(
		&retryBaseInterval,
		"backend-retry-base-interval",
		server.DefaultRetryBaseInterval,
		"Initial wait before retrying a transient store failure.",
	)
	cmd.Flags().DurationVar(
		&retryMaxInterval,
		"backend-retry-max-interval",
		server.DefaultRetryMaxInterval,
		"Upper bound of the retry wait.",
	)
	cmd.Flags().DurationVar(
		&storeConnectTimeout,
		"store-connect-timeout",
		server.DefaultStoreConnectTimeout,
		"Timeout for establishing connections to remote document stores.",
	)
	cmd.Flags().DurationVar(
		&storeRequestTimeout,
		"store-request-timeout",
		server.DefaultStoreRequestTimeout,
		"Timeout for a single request to a remote document store.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoFerryDatabase,
		"mongo-ferry-database",
		server.DefaultMongoFerryDatabase,
		"Mongo DB's database name for Ferry",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	rootCmd.AddCommand(cmd)
}
