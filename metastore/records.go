// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package metastore persists catalog records, databases, tables and
// their partitions, as columns of one CQL table. It is a thin facade:
// records are opaque tagged payloads, the store never interprets them
// beyond their row and entity name.
package metastore

// FieldID tags one record field on the wire
type FieldID uint8

// Field ids are shared across record kinds. New fields get fresh ids,
// decoders skip ids they do not know.
const (
	FieldName       FieldID = 1
	FieldComment    FieldID = 2
	FieldLocation   FieldID = 3
	FieldParams     FieldID = 4
	FieldDBName     FieldID = 5
	FieldOwner      FieldID = 6
	FieldCreateTime FieldID = 7
	FieldTableName  FieldID = 8
)

type wireType uint8

const (
	wireString wireType = 0
	wireI64    wireType = 1
	wireMap    wireType = 2
)

// fieldValue is the tagged variant a record exchanges with the codec:
// one of a string, an int64 or a string map, never more than one
type fieldValue struct {
	wt wireType
	s  string
	i  int64
	m  map[string]string
}

func stringValue(s string) fieldValue {
	return fieldValue{wt: wireString, s: s}
}

func i64Value(i int64) fieldValue {
	return fieldValue{wt: wireI64, i: i}
}

func mapValue(m map[string]string) fieldValue {
	return fieldValue{wt: wireMap, m: m}
}

// Record is a persistable metastore record. Implementations enumerate
// their field ids and map ids to values in both directions; the codec
// never reflects over a record.
type Record interface {
	// Entity names the record's column within its row
	Entity() string

	fieldIDs() []FieldID
	fieldValue(id FieldID) fieldValue
	setFieldValue(id FieldID, v fieldValue)
}

func databaseEntity(name string) string {
	return "db::" + name
}

func tableEntity(name string) string {
	return "table::" + name
}

func partitionEntity(table, name string) string {
	return "part::" + table + "::" + name
}

// Database describes one database of the catalog
type Database struct {
	Name        string
	Comment     string
	LocationURI string
	Params      map[string]string
}

// Entity implements Record
func (d *Database) Entity() string {
	return databaseEntity(d.Name)
}

func (d *Database) fieldIDs() []FieldID {
	return []FieldID{FieldName, FieldComment, FieldLocation, FieldParams}
}

func (d *Database) fieldValue(id FieldID) fieldValue {
	switch id {
	case FieldName:
		return stringValue(d.Name)
	case FieldComment:
		return stringValue(d.Comment)
	case FieldLocation:
		return stringValue(d.LocationURI)
	case FieldParams:
		return mapValue(d.Params)
	}
	return fieldValue{}
}

func (d *Database) setFieldValue(id FieldID, v fieldValue) {
	switch id {
	case FieldName:
		d.Name = v.s
	case FieldComment:
		d.Comment = v.s
	case FieldLocation:
		d.LocationURI = v.s
	case FieldParams:
		d.Params = v.m
	}
}

// Table describes one table of a database
type Table struct {
	DBName     string
	Name       string
	Owner      string
	CreateTime int64
	Location   string
	Params     map[string]string
}

// Entity implements Record
func (t *Table) Entity() string {
	return tableEntity(t.Name)
}

func (t *Table) fieldIDs() []FieldID {
	return []FieldID{FieldDBName, FieldName, FieldOwner, FieldCreateTime,
		FieldLocation, FieldParams}
}

func (t *Table) fieldValue(id FieldID) fieldValue {
	switch id {
	case FieldDBName:
		return stringValue(t.DBName)
	case FieldName:
		return stringValue(t.Name)
	case FieldOwner:
		return stringValue(t.Owner)
	case FieldCreateTime:
		return i64Value(t.CreateTime)
	case FieldLocation:
		return stringValue(t.Location)
	case FieldParams:
		return mapValue(t.Params)
	}
	return fieldValue{}
}

func (t *Table) setFieldValue(id FieldID, v fieldValue) {
	switch id {
	case FieldDBName:
		t.DBName = v.s
	case FieldName:
		t.Name = v.s
	case FieldOwner:
		t.Owner = v.s
	case FieldCreateTime:
		t.CreateTime = v.i
	case FieldLocation:
		t.Location = v.s
	case FieldParams:
		t.Params = v.m
	}
}

// Partition describes one partition of a table
type Partition struct {
	DBName    string
	TableName string
	Name      string
	Location  string
	Params    map[string]string
}

// Entity implements Record
func (p *Partition) Entity() string {
	return partitionEntity(p.TableName, p.Name)
}

func (p *Partition) fieldIDs() []FieldID {
	return []FieldID{FieldDBName, FieldTableName, FieldName, FieldLocation,
		FieldParams}
}

func (p *Partition) fieldValue(id FieldID) fieldValue {
	switch id {
	case FieldDBName:
		return stringValue(p.DBName)
	case FieldTableName:
		return stringValue(p.TableName)
	case FieldName:
		return stringValue(p.Name)
	case FieldLocation:
		return stringValue(p.Location)
	case FieldParams:
		return mapValue(p.Params)
	}
	return fieldValue{}
}

func (p *Partition) setFieldValue(id FieldID, v fieldValue) {
	switch id {
	case FieldDBName:
		p.DBName = v.s
	case FieldTableName:
		p.TableName = v.s
	case FieldName:
		p.Name = v.s
	case FieldLocation:
		p.Location = v.s
	case FieldParams:
		p.Params = v.m
	}
}
