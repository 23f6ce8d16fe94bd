// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pnasrat/brisk"
	"github.com/pnasrat/brisk/cfs"
)

type cmdPut struct {
	BlockSize   string `long:"block-size" default:"64MiB" description:"Split size for stored blocks"`
	Replication uint8  `long:"replication" default:"1" description:"Replica count recorded on the inode"`
	Stats       bool   `long:"stats" description:"Report operation latency quantiles on exit"`

	Args struct {
		Local  string `positional-arg-name:"LOCAL" required:"true" description:"Local file to upload"`
		Remote string `positional-arg-name:"REMOTE" required:"true" description:"Absolute destination path"`
	} `positional-args:"yes"`
}

func (cmd *cmdPut) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	blockSize, err := humanize.ParseBytes(cmd.BlockSize)
	if err != nil || blockSize == 0 {
		return fmt.Errorf("bad block size %q", cmd.BlockSize)
	}

	f, err := os.Open(cmd.Args.Local)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	remote := path.Clean(cmd.Args.Remote)
	userName, group := currentUserGroup()
	if err := makeParents(c, store, path.Dir(remote), userName, group); err != nil {
		return err
	}

	// Blocks are written before the inode that references them.
	buf := make([]byte, blockSize)
	var blocks []brisk.Block
	var offset uint64
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			id := uuid.New()
			if err := store.StoreBlock(c, id, buf[:n]); err != nil {
				return err
			}
			blocks = append(blocks, brisk.Block{
				ID:     id,
				Offset: offset,
				Length: uint64(n),
			})
			offset += uint64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return err
		}
	}

	inode := &brisk.Inode{
		User:        userName,
		Group:       group,
		Mode:        uint16(fi.Mode().Perm()),
		Ftype:       brisk.FileTypeFile,
		Replication: cmd.Replication,
		Mtime:       time.Now().UnixMilli(),
		Blocks:      blocks,
	}
	if err := store.StoreInode(c, remote, inode); err != nil {
		return err
	}

	fmt.Printf("stored %s as %s in %d blocks (%s)\n",
		cmd.Args.Local, remote, len(blocks), humanize.IBytes(offset))
	if cmd.Stats {
		store.ReportAPIStats()
	}
	return nil
}

// makeParents creates any missing directories from dir up to an
// existing ancestor.
func makeParents(c cfs.Ctx, store *cfs.Store, dir, userName,
	group string) error {

	var missing []string
	for p := dir; ; p = path.Dir(p) {
		inode, err := store.RetrieveInode(c, p)
		if err != nil {
			return err
		}
		if inode != nil {
			if !inode.IsDir() {
				return fmt.Errorf("%s is not a directory", p)
			}
			break
		}
		missing = append(missing, p)
		if p == "/" {
			break
		}
	}

	for i := len(missing) - 1; i >= 0; i-- {
		inode := newDirInode(userName, group)
		if err := store.StoreInode(c, missing[i], inode); err != nil {
			return err
		}
	}
	return nil
}

type cmdGet struct {
	Offset uint64 `long:"offset" default:"0" description:"Byte offset to start reading at"`
	Length uint64 `long:"length" default:"0" description:"Bytes to read, 0 means through end of file"`
	Stats  bool   `long:"stats" description:"Report operation latency quantiles on exit"`

	Args struct {
		Remote string `positional-arg-name:"REMOTE" required:"true" description:"Absolute path to read"`
		Local  string `positional-arg-name:"LOCAL" description:"Local destination, omit or - for stdout"`
	} `positional-args:"yes"`
}

func (cmd *cmdGet) Execute([]string) error {
	initLog()
	c := cfs.DefaultCtx
	store := mustOpenStore(c)
	defer store.Close()

	inode, err := store.RetrieveInode(c, cmd.Args.Remote)
	if err != nil {
		return err
	}
	if inode == nil {
		return fmt.Errorf("%s does not exist", cmd.Args.Remote)
	}
	if inode.IsDir() {
		return fmt.Errorf("%s is a directory", cmd.Args.Remote)
	}

	size := inode.Length()
	if cmd.Offset > size {
		return fmt.Errorf("offset %d past end of %s (%d bytes)",
			cmd.Offset, cmd.Args.Remote, size)
	}
	length := cmd.Length
	if length == 0 || cmd.Offset+length > size {
		length = size - cmd.Offset
	}

	rc, err := store.ReadRange(c, inode, cmd.Offset, length)
	if err != nil {
		return err
	}
	defer rc.Close()

	if cmd.Args.Local == "" || cmd.Args.Local == "-" {
		if _, err := io.Copy(os.Stdout, rc); err != nil {
			return err
		}
		if cmd.Stats {
			store.ReportAPIStats()
		}
		return nil
	}

	f, err := os.Create(cmd.Args.Local)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, rc)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("read %s into %s\n", humanize.IBytes(uint64(n)), cmd.Args.Local)
	if cmd.Stats {
		store.ReportAPIStats()
	}
	return nil
}
