package database

// table stores key-value pairs of the bridge state. Key is a hex string
// without prefix '0x', value is an opaque blob (rlp or raw bytes).
var kvTable = `CREATE TABLE IF NOT EXISTS kv (
	key VARCHAR(128) PRIMARY KEY NOT NULL,
	value BLOB NOT NULL,
	CONSTRAINT chk_key CHECK (length(key) > 0)
);`
