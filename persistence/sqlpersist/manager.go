// Package sqlpersist backs remote.PersistenceManager with the mysql query
// builder package, so LRU overflow-to-disk (eviction.LRUEntriesMap's
// OVERFLOW_TO_DISK action) writes through to a real table instead of a
// file-backed region like the original disk store. Values are optionally
// compressed and, separately, optionally AES-encrypted before the row is
// written; both are per-row flags so a manager's configuration can change
// across the table's lifetime without breaking older rows.
package sqlpersist

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"regioncache/crypter"
	"regioncache/errs"
	"regioncache/mysql"
	"regioncache/persistence/compressor"
	"regioncache/serializer"
)

// row is the table's column layout; field order must match the positional
// INSERT the mysql package's InsertBuilder emits.
type row struct {
	RegionName string    `db:"region_name"`
	EntryKey   string    `db:"entry_key"`
	Payload    []byte    `db:"payload"`
	Compressed bool      `db:"compressed"`
	Compressor string    `db:"compressor"`
	Encrypted  bool      `db:"encrypted"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Config controls the optional encoding steps; Crypt may be left nil to
// disable at-rest encryption entirely.
type Config struct {
	Table      string
	Compressor compressor.Compresser
	Crypt      crypter.Crypter
	// Codec controls the wire format rows are stored in; nil defaults to
	// serializer.JSONCodec, matching every prior row written before a
	// region switches codecs.
	Codec serializer.Codec
}

// Manager implements remote.PersistenceManager (spec §6) against a single
// MySQL table shared by every region that opts into disk overflow; rows are
// namespaced by the region name Init was called with.
type Manager struct {
	db         *sqlx.DB
	table      string
	regionName string
	codec      compressor.Compresser
	codecName  string
	crypt      crypter.Crypter
	wireCodec  serializer.Codec
}

// NewManager wraps an already-open connection pool (built with
// mysql.NewClient); the pool is shared across every region's Manager.
func NewManager(db *sqlx.DB, cfg Config) *Manager {
	codec := cfg.Compressor
	name := "none"
	switch codec.(type) {
	case nil:
		codec = compressor.NoneCompressor{}
	case *compressor.ZstdCompressor:
		name = "zstd"
	case *compressor.DatadogZstdCompressor:
		name = "ddzstd"
	case compressor.Lz4Compressor:
		name = "lz4"
	}
	wireCodec := cfg.Codec
	if wireCodec == nil {
		wireCodec = serializer.JSONCodec{}
	}
	return &Manager{db: db, table: cfg.Table, codec: codec, codecName: name, crypt: cfg.Crypt, wireCodec: wireCodec}
}

// Init implements remote.PersistenceManager; properties is consulted for a
// "table" override, matching the teacher's pattern of passing free-form
// region properties through to infrastructure collaborators.
func (m *Manager) Init(regionName string, properties map[string]any) error {
	if m.table == "" {
		m.table = "region_overflow"
	}
	if t, ok := properties["table"].(string); ok && t != "" {
		m.table = t
	}
	m.regionName = regionName
	return nil
}

func (m *Manager) encode(value any) ([]byte, bool, error) {
	payload, err := m.wireCodec.Marshal(value)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: marshal value")
	}

	compressed := true
	out, err := m.codec.Compress(payload)
	if err != nil {
		if errors.Is(err, compressor.ErrNotShrunk) {
			out, compressed = payload, false
		} else {
			return nil, false, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: compress value")
		}
	}

	if m.crypt != nil {
		out, err = m.crypt.EnCrypt(out)
		if err != nil {
			return nil, false, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: encrypt value")
		}
	}
	return out, compressed, nil
}

func (m *Manager) decode(r row) (any, error) {
	payload := r.Payload
	if r.Encrypted {
		if m.crypt == nil {
			return nil, errs.New(errs.KindPersistenceFailure, "sqlpersist: row is encrypted but no crypter configured")
		}
		var err error
		payload, err = m.crypt.DeCrypt(payload)
		if err != nil {
			return nil, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: decrypt value")
		}
	}

	if r.Compressed {
		codec, err := compressor.Named(r.Compressor)
		if err != nil {
			return nil, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: resolve row codec")
		}
		payload, err = codec.Decompress(payload)
		if err != nil {
			return nil, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: decompress value")
		}
	}

	var value any
	if err := m.wireCodec.Unmarshal(payload, &value); err != nil {
		return nil, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: unmarshal value")
	}
	return value, nil
}

func (m *Manager) keyOf(key any) string { return toKeyString(key) }

// Write implements remote.PersistenceManager; it upserts by region_name and
// entry_key since the mysql package has no native ON DUPLICATE KEY builder.
// info is unused here (the original disk store's DiskId offset has no
// analogue against a keyed table) and newInfo always comes back nil.
func (m *Manager) Write(key any, value any, info any) (any, error) {
	return nil, m.upsert(key, value)
}

func (m *Manager) upsert(key any, value any) error {
	ctx := context.Background()
	payload, compressed, err := m.encode(value)
	if err != nil {
		return err
	}

	_, err = mysql.SelectFrom[row](m.table).
		Where(mysql.And(mysql.Eq("region_name", m.regionName), mysql.Eq("entry_key", m.keyOf(key)))).
		Fetch(ctx, m.db)

	switch {
	case err == nil:
		_, err = mysql.UpdateFrom(m.table).
			Set(
				mysql.UpdateCond{Set: "payload", Arg: payload},
				mysql.UpdateCond{Set: "compressed", Arg: compressed},
				mysql.UpdateCond{Set: "compressor", Arg: m.codecName},
				mysql.UpdateCond{Set: "encrypted", Arg: m.crypt != nil},
				mysql.UpdateCond{Set: "updated_at", Arg: time.Now()},
			).
			Where(mysql.And(mysql.Eq("region_name", m.regionName), mysql.Eq("entry_key", m.keyOf(key)))).
			Exec(ctx, m.db)
		if err != nil {
			return errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: update row")
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert below.
	default:
		return errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: check existing row")
	}

	_, err = mysql.InsertFrom(m.table).
		Values(&mysql.InsertCond{Arg: []any{m.regionName, m.keyOf(key), payload, compressed, m.codecName, m.crypt != nil, time.Now()}}).
		Exec(ctx, m.db)
	if err != nil {
		return errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: insert row")
	}
	return nil
}

// Read implements remote.PersistenceManager.
func (m *Manager) Read(key any, info any) (any, error) {
	ctx := context.Background()
	r, err := mysql.SelectFrom[row](m.table).
		Where(mysql.And(mysql.Eq("region_name", m.regionName), mysql.Eq("entry_key", m.keyOf(key)))).
		Fetch(ctx, m.db)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrEntryNotFound
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: read row")
	}
	return m.decode(r)
}

// Destroy implements remote.PersistenceManager.
func (m *Manager) Destroy(key any, info any) error {
	ctx := context.Background()
	_, err := mysql.DeleteFrom(m.table).
		Where(mysql.And(mysql.Eq("region_name", m.regionName), mysql.Eq("entry_key", m.keyOf(key)))).
		Exec(ctx, m.db)
	if err != nil {
		return errs.Wrap(errs.KindPersistenceFailure, err, "sqlpersist: delete row")
	}
	return nil
}

// Close implements remote.PersistenceManager.
func (m *Manager) Close() error {
	return m.db.Close()
}
