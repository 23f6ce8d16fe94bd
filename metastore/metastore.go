// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package metastore

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/gocql/gocql"

	"github.com/pnasrat/brisk"
	"github.com/pnasrat/brisk/cfs"
)

const recordsTable = "records"

const defaultKeySpace = "metastore"

const defaultCheckSchemaRetries = 20

// databasesRow keys the row indexing the database records themselves.
// Every other row is keyed by the database it belongs to.
const databasesRow = "__databases__"

// racing schema creators recheck after rand([0, bootstrapBackoffMs)) ms
var bootstrapBackoffMs = 5000

var schemaRetryPause = time.Second

// Config holds the connection and keyspace settings of a MetaStore
type Config struct {
	Cluster cfs.ClusterConfig `json:"cluster"`

	// ReplicationFactor is used only when this process ends up
	// creating the keyspace
	ReplicationFactor int `json:"replicationfactor"`
}

// MetaStore persists catalog records in one CQL table, a row per
// database plus the index row for databases themselves. Statements
// run at the session's consistency level.
type MetaStore struct {
	cluster  cfs.Cluster
	session  cfs.Session
	keyspace string
	cfg      *Config
}

// New connects to the cluster in cfg, sets up the schema if needed
// and returns a ready MetaStore.
func New(c cfs.Ctx, cfg *Config) (*MetaStore, error) {
	if cfg.Cluster.KeySpace == "" {
		cfg.Cluster.KeySpace = defaultKeySpace
	}
	if cfg.Cluster.CheckSchemaRetries == 0 {
		cfg.Cluster.CheckSchemaRetries = defaultCheckSchemaRetries
	}
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 1
	}
	cluster := cfs.NewRealCluster(&cfg.Cluster)
	return open(c, cluster, cfg)
}

func open(c cfs.Ctx, cluster cfs.Cluster, cfg *Config) (*MetaStore, error) {
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error in connecting to cluster %s", err.Error())
	}

	m := &MetaStore{
		cluster:  cluster,
		session:  session,
		keyspace: cfg.Cluster.KeySpace,
		cfg:      cfg,
	}
	if err := m.EnsureSchema(c); err != nil {
		session.Close()
		return nil, err
	}
	return m, nil
}

// Close shuts down the session with the cluster
func (m *MetaStore) Close() {
	m.session.Close()
}

// EnsureSchema sets up the metastore keyspace and records table with
// the same desynchronized protocol as the filesystem store: probe,
// randomized backoff, re-probe and only then create, with already
// existing schema counting as success.
func (m *MetaStore) EnsureSchema(c cfs.Ctx) error {
	md, err := m.session.KeyspaceMetadata(m.keyspace)
	if err == nil && md != nil {
		return nil
	}

	pause := time.Duration(rand.Intn(bootstrapBackoffMs)) *
		time.Millisecond
	c.Dlog("keyspace %q absent, rechecking in %v", m.keyspace, pause)
	time.Sleep(pause)

	md, err = m.session.KeyspaceMetadata(m.keyspace)
	if err == nil && md != nil {
		return nil
	}
	return m.createSchema(c)
}

func (m *MetaStore) createSchema(c cfs.Ctx) error {
	ddls := []string{
		fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s"+
			" WITH REPLICATION ="+
			" { 'class' : 'SimpleStrategy',"+
			" 'replication_factor' : %d };",
			m.keyspace, m.cfg.ReplicationFactor),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s"+
			" ( key text, entity text, value blob,"+
			" PRIMARY KEY ( key, entity ) );",
			m.keyspace, recordsTable),
	}

	for _, stmt := range ddls {
		query := m.session.Query(stmt)
		err := execWithRetry(c, query, m.cfg.Cluster.CheckSchemaRetries)
		if err != nil {
			return brisk.NewError(brisk.ErrSchemaBad,
				"error %q during %s", err.Error(), stmt)
		}
	}

	md, err := m.session.KeyspaceMetadata(m.keyspace)
	if err != nil || md == nil {
		return brisk.NewError(brisk.ErrSchemaBad,
			"keyspace %q missing after creation: %v", m.keyspace, err)
	}
	return nil
}

func execWithRetry(c cfs.Ctx, q cfs.Query, retries int) error {
	var err error
	var i int
	for i = 0; i < retries; i++ {
		err = q.Exec()
		if err == nil {
			break
		}
		time.Sleep(schemaRetryPause)
	}

	if err != nil {
		c.Elog("CQL: Failed after %d attempts query: %q", i, q)
	} else if i > 0 {
		c.Wlog("CQL: Took %d attempts query: %q", i+1, q)
	}
	return err
}

// SaveRecordLog can be used in external tool for log parsing
const SaveRecordLog = "Meta::SaveRecord"

// LoadRecordLog can be used in external tool for log parsing
const LoadRecordLog = "Meta::LoadRecord"

// RemoveRecordLog can be used in external tool for log parsing
const RemoveRecordLog = "Meta::RemoveRecord"

// ScanRowLog can be used in external tool for log parsing
const ScanRowLog = "Meta::ScanRow"

// RenameTableLog can be used in external tool for log parsing
const RenameTableLog = "Meta::RenameTable"

// EntityLog is the format for row and entity args in logs
const EntityLog = "Row: %s Entity: %s"

func (m *MetaStore) saveRecord(c cfs.Ctx, rowKey string, rec Record) error {
	defer c.FuncIn(SaveRecordLog, EntityLog, rowKey, rec.Entity()).Out()

	queryStr := fmt.Sprintf(`INSERT
INTO %s.%s (key, entity, value)
VALUES (?, ?, ?)`, m.keyspace, recordsTable)
	query := m.session.Query(queryStr, rowKey, rec.Entity(),
		encodeRecord(rec))
	if err := query.Exec(); err != nil {
		return brisk.NewError(brisk.ErrOperationFailed,
			"error saving %s in row %s: %s",
			rec.Entity(), rowKey, err.Error())
	}
	return nil
}

func (m *MetaStore) loadRecord(c cfs.Ctx, rowKey, entity string,
	rec Record) (bool, error) {

	defer c.FuncIn(LoadRecordLog, EntityLog, rowKey, entity).Out()

	var value []byte
	queryStr := fmt.Sprintf(`SELECT value
FROM %s.%s
WHERE key = ? AND entity = ?`, m.keyspace, recordsTable)
	query := m.session.Query(queryStr, rowKey, entity)
	if err := query.Scan(&value); err != nil {
		if err == gocql.ErrNotFound {
			return false, nil
		}
		return false, brisk.NewError(brisk.ErrOperationFailed,
			"error loading %s from row %s: %s",
			entity, rowKey, err.Error())
	}

	if err := decodeRecord(value, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MetaStore) removeRecord(c cfs.Ctx, rowKey, entity string) error {
	defer c.FuncIn(RemoveRecordLog, EntityLog, rowKey, entity).Out()

	queryStr := fmt.Sprintf(`DELETE
FROM %s.%s
WHERE key = ? AND entity = ?`, m.keyspace, recordsTable)
	query := m.session.Query(queryStr, rowKey, entity)
	if err := query.Exec(); err != nil {
		return brisk.NewError(brisk.ErrOperationFailed,
			"error removing %s from row %s: %s",
			entity, rowKey, err.Error())
	}
	return nil
}

type entityRow struct {
	entity string
	value  []byte
}

// scanRow returns the entities of one row whose names start with
// prefix, a clustering range scan bounded by the prefix with its last
// byte incremented.
func (m *MetaStore) scanRow(c cfs.Ctx, rowKey, prefix string) ([]entityRow,
	error) {

	defer c.FuncIn(ScanRowLog, EntityLog, rowKey, prefix).Out()

	queryStr := fmt.Sprintf(`SELECT entity, value
FROM %s.%s
WHERE key = ? AND entity >= ? AND entity < ?`, m.keyspace, recordsTable)
	query := m.session.Query(queryStr, rowKey, prefix, prefixEnd(prefix))

	var rows []entityRow
	iter := query.Iter()
	var entity string
	var value []byte
	for iter.Scan(&entity, &value) {
		rows = append(rows, entityRow{entity: entity, value: value})
		value = nil
	}
	if err := iter.Close(); err != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error scanning row %s at %s: %s",
			rowKey, prefix, err.Error())
	}
	return rows, nil
}

func prefixEnd(prefix string) string {
	b := []byte(prefix)
	b[len(b)-1]++
	return string(b)
}

// CreateDatabase saves db's record. An existing database of the same
// name is overwritten.
func (m *MetaStore) CreateDatabase(c cfs.Ctx, db *Database) error {
	if db.Name == "" {
		return brisk.NewError(brisk.ErrBadArguments,
			"database name is empty")
	}
	return m.saveRecord(c, databasesRow, db)
}

// GetDatabase loads the named database's record, (nil, nil) when the
// database does not exist
func (m *MetaStore) GetDatabase(c cfs.Ctx, name string) (*Database, error) {
	db := &Database{}
	found, err := m.loadRecord(c, databasesRow, databaseEntity(name), db)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return db, nil
}

// AllDatabases lists every database record
func (m *MetaStore) AllDatabases(c cfs.Ctx) ([]*Database, error) {
	rows, err := m.scanRow(c, databasesRow, "db::")
	if err != nil {
		return nil, err
	}

	dbs := make([]*Database, 0, len(rows))
	for _, row := range rows {
		db := &Database{}
		if err := decodeRecord(row.value, db); err != nil {
			return nil, err
		}
		dbs = append(dbs, db)
	}
	return dbs, nil
}

// DropDatabase removes the named database's record. Tables under the
// database are left alone, callers drop those first.
func (m *MetaStore) DropDatabase(c cfs.Ctx, name string) error {
	return m.removeRecord(c, databasesRow, databaseEntity(name))
}

// CreateTable saves table's record under its database's row
func (m *MetaStore) CreateTable(c cfs.Ctx, table *Table) error {
	if table.DBName == "" || table.Name == "" {
		return brisk.NewError(brisk.ErrBadArguments,
			"table %q.%q is not fully named", table.DBName, table.Name)
	}
	return m.saveRecord(c, table.DBName, table)
}

// GetTable loads one table's record, (nil, nil) when absent
func (m *MetaStore) GetTable(c cfs.Ctx, dbName, name string) (*Table, error) {
	table := &Table{}
	found, err := m.loadRecord(c, dbName, tableEntity(name), table)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return table, nil
}

// AllTables lists the table records of one database
func (m *MetaStore) AllTables(c cfs.Ctx, dbName string) ([]*Table, error) {
	rows, err := m.scanRow(c, dbName, "table::")
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(rows))
	for _, row := range rows {
		table := &Table{}
		if err := decodeRecord(row.value, table); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// DropTable removes one table's record and every partition record
// under it
func (m *MetaStore) DropTable(c cfs.Ctx, dbName, name string) error {
	rows, err := m.scanRow(c, dbName, partitionEntity(name, ""))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if rerr := m.removeRecord(c, dbName, row.entity); rerr != nil {
			return rerr
		}
	}
	return m.removeRecord(c, dbName, tableEntity(name))
}

// AddPartition saves part's record under its database's row
func (m *MetaStore) AddPartition(c cfs.Ctx, part *Partition) error {
	if part.DBName == "" || part.TableName == "" || part.Name == "" {
		return brisk.NewError(brisk.ErrBadArguments,
			"partition %q.%q.%q is not fully named",
			part.DBName, part.TableName, part.Name)
	}
	return m.saveRecord(c, part.DBName, part)
}

// GetPartition loads one partition's record, (nil, nil) when absent
func (m *MetaStore) GetPartition(c cfs.Ctx, dbName, tableName,
	name string) (*Partition, error) {

	part := &Partition{}
	found, err := m.loadRecord(c, dbName, partitionEntity(tableName, name),
		part)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return part, nil
}

// Partitions lists the partition records of one table
func (m *MetaStore) Partitions(c cfs.Ctx, dbName, tableName string) (
	[]*Partition, error) {

	rows, err := m.scanRow(c, dbName, partitionEntity(tableName, ""))
	if err != nil {
		return nil, err
	}

	parts := make([]*Partition, 0, len(rows))
	for _, row := range rows {
		part := &Partition{}
		if err := decodeRecord(row.value, part); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// DropPartition removes one partition's record
func (m *MetaStore) DropPartition(c cfs.Ctx, dbName, tableName,
	name string) error {

	return m.removeRecord(c, dbName, partitionEntity(tableName, name))
}

// RenameTable renames a table as an explicit migration: the renamed
// table record and re-keyed copies of every partition under it are
// written first, collecting the superseded entities as they go; only
// after every new write has succeeded are the old records removed. A
// failed write aborts with the old records fully intact, leaving any
// already written new records behind as garbage rather than losing
// data.
func (m *MetaStore) RenameTable(c cfs.Ctx, dbName, oldName,
	newName string) error {

	defer c.FuncIn(RenameTableLog, "Db: %s %s -> %s",
		dbName, oldName, newName).Out()

	table, err := m.GetTable(c, dbName, oldName)
	if err != nil {
		return err
	}
	if table == nil {
		return brisk.NewError(brisk.ErrKeyNotFound,
			"table %s.%s does not exist", dbName, oldName)
	}
	parts, err := m.Partitions(c, dbName, oldName)
	if err != nil {
		return err
	}

	var superseded []string

	table.Name = newName
	if err := m.saveRecord(c, dbName, table); err != nil {
		return err
	}
	superseded = append(superseded, tableEntity(oldName))

	for _, part := range parts {
		oldEntity := part.Entity()
		part.TableName = newName
		if err := m.saveRecord(c, dbName, part); err != nil {
			return err
		}
		superseded = append(superseded, oldEntity)
	}

	for _, entity := range superseded {
		if err := m.removeRecord(c, dbName, entity); err != nil {
			return err
		}
	}
	return nil
}
