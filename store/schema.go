package store

// schemaSQL is applied idempotently on every connection. All TEXT keys are
// case-insensitive; all foreign keys are deferred to transaction commit so
// parent and child rows can land in either order inside one transaction.
//
// AxisContent's primary key is a single storage-index sequence shared by
// all axes; the per-axis storage index of a label is its rank within the
// axis by ascending global_storage_index. Ranks only ever grow at the end
// because labels are append-only.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS Quilt(
	quilt_name TEXT PRIMARY KEY COLLATE NOCASE,
	axes       TEXT NOT NULL CHECK (json_valid(axes))
);

CREATE TABLE IF NOT EXISTS Axis(
	axis_name TEXT PRIMARY KEY COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS AxisContent(
	global_storage_index INTEGER PRIMARY KEY AUTOINCREMENT,
	axis_name            TEXT NOT NULL COLLATE NOCASE
		REFERENCES Axis(axis_name) DEFERRABLE INITIALLY DEFERRED,
	label                INTEGER NOT NULL,
	UNIQUE (axis_name, label)
);
CREATE UNIQUE INDEX IF NOT EXISTS AxisContentOrder
	ON AxisContent(axis_name, global_storage_index, label);

CREATE TABLE IF NOT EXISTS Comm(
	comm_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_comm_id INTEGER
		REFERENCES Comm(comm_id) DEFERRABLE INITIALLY DEFERRED,
	message        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS Patch(
	patch_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	comm_id           INTEGER NOT NULL
		REFERENCES Comm(comm_id) DEFERRABLE INITIALLY DEFERRED,
	decompressed_size INTEGER NOT NULL,
	dim_0_min INTEGER, dim_0_max INTEGER,
	dim_1_min INTEGER, dim_1_max INTEGER,
	dim_2_min INTEGER, dim_2_max INTEGER,
	dim_3_min INTEGER, dim_3_max INTEGER
);
CREATE INDEX IF NOT EXISTS PatchByCommit ON Patch(comm_id);

CREATE TABLE IF NOT EXISTS PatchContent(
	patch_id INTEGER PRIMARY KEY
		REFERENCES Patch(patch_id) DEFERRABLE INITIALLY DEFERRED,
	content  BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS Tag(
	quilt_name TEXT NOT NULL COLLATE NOCASE
		REFERENCES Quilt(quilt_name) DEFERRABLE INITIALLY DEFERRED,
	tag_name   TEXT NOT NULL COLLATE NOCASE,
	comm_id    INTEGER NOT NULL
		REFERENCES Comm(comm_id) DEFERRABLE INITIALLY DEFERRED,
	PRIMARY KEY (quilt_name, tag_name)
);
`
