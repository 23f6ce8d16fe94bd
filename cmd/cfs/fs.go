// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/pnasrat/brisk"
	"github.com/pnasrat/brisk/cfs"
)

type cmdInit struct {
	WriteConfig bool     `long:"write-config" description:"Write a starter config file to the --config path before connecting"`
	Nodes       []string `long:"node" default:"localhost" description:"Cluster node for the starter config, repeatable"`
}

func (cmd *cmdInit) Execute([]string) error {
	initLog()

	if cmd.WriteConfig {
		cfg := &cfs.Config{Cluster: cfs.ClusterConfig{Nodes: cmd.Nodes}}
		if err := cfs.WriteConfig(Config.ConfigFile, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", Config.ConfigFile)
	}

	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	root, err := store.RetrieveInode(c, "/")
	if err != nil {
		return err
	}
	if root != nil {
		fmt.Printf("filesystem already initialized in keyspace %q\n",
			store.Keyspace())
		return nil
	}

	userName, group := currentUserGroup()
	if err := store.StoreInode(c, "/", newDirInode(userName, group)); err != nil {
		return err
	}
	fmt.Printf("initialized filesystem in keyspace %q\n", store.Keyspace())
	return nil
}

type cmdLs struct {
	Args struct {
		Path string `positional-arg-name:"PATH" required:"true" description:"Absolute directory path"`
	} `positional-args:"yes"`
}

func (cmd *cmdLs) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	children, err := store.ListChildren(c, cmd.Args.Path)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Type", "Mode", "User", "Group", "Size", "Modified"})

	for _, p := range children {
		inode, err := store.RetrieveInode(c, p)
		if err != nil {
			return err
		}
		if inode == nil {
			continue // deleted while listing
		}
		table.Append(inodeRow(p, inode))
	}
	table.Render()
	return nil
}

func inodeRow(path string, inode *brisk.Inode) []string {
	ftype := "file"
	if inode.IsDir() {
		ftype = "dir"
	}
	return []string{
		path,
		ftype,
		fmt.Sprintf("%04o", inode.Mode),
		inode.User,
		inode.Group,
		humanize.IBytes(inode.Length()),
		time.UnixMilli(inode.Mtime).Format(time.RFC3339),
	}
}

type cmdTree struct {
	Args struct {
		Path string `positional-arg-name:"PATH" required:"true" description:"Absolute directory path"`
	} `positional-args:"yes"`
}

func (cmd *cmdTree) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	paths, err := store.ListDescendants(c, cmd.Args.Path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

type cmdStat struct {
	Args struct {
		Path string `positional-arg-name:"PATH" required:"true" description:"Absolute path"`
	} `positional-args:"yes"`
}

func (cmd *cmdStat) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	inode, err := store.RetrieveInode(c, cmd.Args.Path)
	if err != nil {
		return err
	}
	if inode == nil {
		return fmt.Errorf("%s does not exist", cmd.Args.Path)
	}

	ftype := "file"
	if inode.IsDir() {
		ftype = "dir"
	}
	fmt.Printf("Path:      %s\n", cmd.Args.Path)
	fmt.Printf("Type:      %s\n", ftype)
	fmt.Printf("Mode:      %04o\n", inode.Mode)
	fmt.Printf("Owner:     %s:%s\n", inode.User, inode.Group)
	fmt.Printf("Replicas:  %d\n", inode.Replication)
	fmt.Printf("Size:      %s (%d bytes)\n",
		humanize.IBytes(inode.Length()), inode.Length())
	fmt.Printf("Modified:  %s\n",
		time.UnixMilli(inode.Mtime).Format(time.RFC3339))
	fmt.Printf("Written:   %s\n",
		time.UnixMicro(inode.WriteTime).Format(time.RFC3339Nano))
	fmt.Printf("Blocks:    %d\n", len(inode.Blocks))
	for i, b := range inode.Blocks {
		fmt.Printf("  %4d  %s  offset=%-12d  %s\n",
			i, b.ID, b.Offset, humanize.IBytes(b.Length))
	}
	return nil
}

type cmdRm struct {
	Recursive bool `long:"recursive" short:"r" description:"Delete a directory and everything under it"`

	Args struct {
		Path string `positional-arg-name:"PATH" required:"true" description:"Absolute path to delete"`
	} `positional-args:"yes"`
}

func (cmd *cmdRm) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	inode, err := store.RetrieveInode(c, cmd.Args.Path)
	if err != nil {
		return err
	}
	if inode == nil {
		return fmt.Errorf("%s does not exist", cmd.Args.Path)
	}

	if !inode.IsDir() {
		return removeOne(c, store, cmd.Args.Path, inode)
	}

	children, err := store.ListChildren(c, cmd.Args.Path)
	if err != nil {
		return err
	}
	if len(children) > 0 && !cmd.Recursive {
		return fmt.Errorf("%s is not empty, use --recursive", cmd.Args.Path)
	}

	paths, err := store.ListDescendants(c, cmd.Args.Path)
	if err != nil {
		return err
	}

	// Sorted descendants run parents-first, delete in reverse so no
	// child outlives its directory.
	for i := len(paths) - 1; i >= 0; i-- {
		in, err := store.RetrieveInode(c, paths[i])
		if err != nil {
			return err
		}
		if in == nil {
			continue
		}
		if err := removeOne(c, store, paths[i], in); err != nil {
			return err
		}
	}
	return nil
}

// removeOne deletes the inode first, then its blocks. A failure partway
// leaves orphaned block rows, never a path pointing at missing data.
func removeOne(c cfs.Ctx, store *cfs.Store, path string,
	inode *brisk.Inode) error {

	if err := store.DeleteInode(c, path); err != nil {
		return err
	}
	for _, b := range inode.Blocks {
		if err := store.DeleteBlock(c, b.ID); err != nil {
			return err
		}
	}
	fmt.Printf("deleted %s\n", path)
	return nil
}

type cmdLocations struct {
	Args struct {
		Path string `positional-arg-name:"PATH" required:"true" description:"Absolute file path"`
	} `positional-args:"yes"`
}

func (cmd *cmdLocations) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	inode, err := store.RetrieveInode(c, cmd.Args.Path)
	if err != nil {
		return err
	}
	if inode == nil {
		return fmt.Errorf("%s does not exist", cmd.Args.Path)
	}

	locations, err := store.BlockLocations(c, inode.Blocks, 0, inode.Length())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Block", "Offset", "Length", "Hosts"})
	for i, loc := range locations {
		table.Append([]string{
			inode.Blocks[i].ID.String(),
			fmt.Sprintf("%d", loc.Offset),
			humanize.IBytes(loc.Length),
			strings.Join(loc.Hosts, ","),
		})
	}
	table.Render()
	return nil
}
