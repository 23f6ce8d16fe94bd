// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"encoding/json"
	"os"
)

// Config holds the info needed to connect to a cql cluster and the
// knobs for the filesystem store APIs
type Config struct {
	Cluster    ClusterConfig    `json:"cluster"`
	Filesystem FilesystemConfig `json:"filesystem"`
}

// ClusterConfig holds the info needed to connect to a cql cluster
type ClusterConfig struct {
	Nodes              []string `json:"nodes"`
	ClusterName        string   `json:"clusterName"`
	NumConns           int      `json:"numconnections"`
	QueryNumRetries    int      `json:"querynumretries"`
	KeySpace           string   `json:"keyspace"`
	ConnTimeoutSec     int      `json:"conntimeoutsec"`
	Username           string   `json:"username"`
	Password           string   `json:"password"`
	CheckSchemaRetries int      `json:"checkschemaretries"`
}

// FilesystemConfig holds config values specific to the filesystem store
type FilesystemConfig struct {
	// ReadConsistency and WriteConsistency name the consistency
	// levels for reads and writes, eg "QUORUM" or "ONE". QUORUM
	// levels are promoted to LOCAL_QUORUM when the keyspace uses a
	// network topology aware replication strategy.
	ReadConsistency  string `json:"readconsistency"`
	WriteConsistency string `json:"writeconsistency"`

	// ReplicationFactor is used only when this process ends up
	// creating the keyspace
	ReplicationFactor int `json:"replicationfactor"`

	// RowCap bounds how many rows one directory index scan returns
	RowCap int `json:"rowcap"`

	// BlockServerAddr is the address of the co-located block server.
	// Empty means no locality daemon, all block reads are remote.
	BlockServerAddr string `json:"blockserveraddr"`

	// BlockCacheEntries sizes the remote block LRU cache, 0 disables
	BlockCacheEntries int `json:"blockcacheentries"`
}

const (
	defaultKeySpace           = "cfs"
	defaultRowCap             = 100000
	defaultReplicationFactor  = 1
	defaultConsistency        = "QUORUM"
	defaultCheckSchemaRetries = 20
)

func (cfg *Config) setDefaults() {
	if cfg.Cluster.KeySpace == "" {
		cfg.Cluster.KeySpace = defaultKeySpace
	}
	if cfg.Cluster.CheckSchemaRetries == 0 {
		cfg.Cluster.CheckSchemaRetries = defaultCheckSchemaRetries
	}
	if cfg.Filesystem.ReadConsistency == "" {
		cfg.Filesystem.ReadConsistency = defaultConsistency
	}
	if cfg.Filesystem.WriteConsistency == "" {
		cfg.Filesystem.WriteConsistency = defaultConsistency
	}
	if cfg.Filesystem.ReplicationFactor == 0 {
		cfg.Filesystem.ReplicationFactor = defaultReplicationFactor
	}
	if cfg.Filesystem.RowCap == 0 {
		cfg.Filesystem.RowCap = defaultRowCap
	}
}

// WriteConfig converts the Config struct to a JSON file
func WriteConfig(fileName string, config *Config) error {

	file, err := os.Create(fileName)
	if err != nil {
		return err
	}

	err = json.NewEncoder(file).Encode(config)
	if err != nil {
		file.Close()
		return err
	}

	err = file.Close()
	return err
}

// ReadConfig loads a Config from a JSON file
func ReadConfig(fileName string) (*Config, error) {
	var config Config

	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}

	err = json.NewDecoder(file).Decode(&config)
	if err != nil {
		file.Close()
		return nil, err
	}

	err = file.Close()
	return &config, err
}
