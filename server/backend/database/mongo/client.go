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

// Package mongo implements the checkpoint database using MongoDB, for
// deployments where replication progress must survive restarts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	gotime "time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ferry-db/ferry/server/backend/database"
)

// colCheckpoints is the collection holding one row per replication identity.
const colCheckpoints = "checkpoints"

// Client is a client that connects to MongoDB and reads or saves Ferry data.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(
		options.Client().ApplyURI(conf.ConnectionURI),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.FerryDatabase)); err != nil {
		return nil, err
	}

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}
	return nil
}

// FindCheckpoint returns the checkpoint for the given replication identity.
func (c *Client) FindCheckpoint(
	ctx context.Context,
	replicationID string,
) (*database.CheckpointInfo, error) {
	result := c.collection().FindOne(ctx, bson.M{
		"replication_id": replicationID,
	})

	info := &database.CheckpointInfo{}
	if err := result.Decode(info); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("checkpoint of %s: %w", replicationID, database.ErrCheckpointNotFound)
		}
		return nil, fmt.Errorf("find checkpoint of %s: %v: %w", replicationID, err, database.ErrCheckpointStoreDown)
	}

	return info, nil
}

// UpsertCheckpoint persists lastSeq for the given replication identity. The
// $max operator keeps the stored sequence non-decreasing even under
// concurrent upserts.
func (c *Client) UpsertCheckpoint(
	ctx context.Context,
	replicationID string,
	lastSeq uint64,
) (*database.CheckpointInfo, error) {
	result := c.collection().FindOneAndUpdate(ctx, bson.M{
		"replication_id": replicationID,
	}, bson.M{
		"$max": bson.M{"last_seq": lastSeq},
		"$set": bson.M{"updated_at": gotime.Now()},
		"$setOnInsert": bson.M{
			"replication_id": replicationID,
		},
	}, options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))

	info := &database.CheckpointInfo{}
	if err := result.Decode(info); err != nil {
		return nil, fmt.Errorf("upsert checkpoint of %s: %v: %w", replicationID, err, database.ErrCheckpointStoreDown)
	}

	return info, nil
}

// RemoveCheckpoint deletes the checkpoint of the given replication identity.
func (c *Client) RemoveCheckpoint(ctx context.Context, replicationID string) error {
	if _, err := c.collection().DeleteOne(ctx, bson.M{
		"replication_id": replicationID,
	}); err != nil {
		return fmt.Errorf("delete checkpoint of %s: %v: %w", replicationID, err, database.ErrCheckpointStoreDown)
	}
	return nil
}

func (c *Client) collection() *mongo.Collection {
	return c.client.Database(c.config.FerryDatabase).Collection(colCheckpoints)
}
