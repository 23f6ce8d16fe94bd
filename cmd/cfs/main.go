// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// cfs is the command line tool of the filesystem store. It talks to
// the cluster directly through the cfs package, so a filesystem can be
// inspected and repaired without any other process running.
package main

import (
	"os"
	"os/user"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/pnasrat/brisk"
	"github.com/pnasrat/brisk/cfs"
)

// Config holds the options shared by every subcommand.
var Config = new(struct {
	ConfigFile string `long:"config" short:"c" env:"CFS_CONFIG" default:"cfs.json" description:"Path to the cluster config file"`

	Log struct {
		Level  string `long:"level" env:"LEVEL" default:"warn" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
		Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" description:"Logging output format"`
	} `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

func main() {
	parser := flags.NewParser(Config, flags.Default)
	parser.LongDescription = `cfs inspects and edits a Cassandra backed filesystem.

Paths are absolute and slash separated. Connection details are read from
a JSON config file, see "cfs init --help" for producing one.`

	mustAddCmd(parser, "init", "Create the schema and the root directory", `
Create the keyspace and tables if they do not exist, then create the
root directory "/". Optionally write a starter config file first.
`, &cmdInit{})
	mustAddCmd(parser, "ls", "List a directory", `
List the immediate children of a directory in a table.
`, &cmdLs{})
	mustAddCmd(parser, "tree", "List a subtree", `
List every path under a directory, one per line, sorted.
`, &cmdTree{})
	mustAddCmd(parser, "stat", "Show one inode", `
Show the stored metadata of one path, including the block list.
`, &cmdStat{})
	mustAddCmd(parser, "put", "Upload a local file", `
Split a local file into blocks, store the blocks, then store the inode.
Missing parent directories are created first.
`, &cmdPut{})
	mustAddCmd(parser, "get", "Download a file", `
Stream a file, or a byte range of it, to a local file or stdout.
`, &cmdGet{})
	mustAddCmd(parser, "rm", "Delete a path", `
Delete the inode of a path and then its blocks. Directories require
--recursive unless empty.
`, &cmdRm{})
	mustAddCmd(parser, "locations", "Show block placement", `
Show the replica endpoints holding each block of a file, for scheduling
work next to its data.
`, &cmdLocations{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAddCmd(parser *flags.Parser, name, short, long string, cfg interface{}) {
	if _, err := parser.AddCommand(name, short, long, cfg); err != nil {
		log.WithFields(log.Fields{"err": err, "cmd": name}).
			Fatal("failed to add command")
	}
}

func initLog() {
	if Config.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{})
	}

	if lvl, err := log.ParseLevel(Config.Log.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
}

// mustOpenStore connects using the shared config file and exits on
// failure. Callers own the returned store and must Close it.
func mustOpenStore(c cfs.Ctx) *cfs.Store {
	store, err := cfs.New(c, Config.ConfigFile)
	if err != nil {
		log.WithFields(log.Fields{"err": err, "config": Config.ConfigFile}).
			Fatal("failed to open store")
	}
	return store
}

// currentUserGroup resolves the invoking user and group names, falling
// back to numeric ids when the lookup fails.
func currentUserGroup() (string, string) {
	u, err := user.Current()
	if err != nil {
		return "nobody", "nobody"
	}
	group := u.Gid
	if g, err := user.LookupGroupId(u.Gid); err == nil {
		group = g.Name
	}
	return u.Username, group
}

func newDirInode(userName, group string) *brisk.Inode {
	return &brisk.Inode{
		User:  userName,
		Group: group,
		Mode:  0755,
		Ftype: brisk.FileTypeDir,
		Mtime: time.Now().UnixMilli(),
	}
}
