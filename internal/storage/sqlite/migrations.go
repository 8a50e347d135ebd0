package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: parent tables must be created before the tables that
// reference them.
const schema = `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    admission_no TEXT NOT NULL DEFAULT '',
    class_id TEXT NOT NULL,
    section_id TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fee_types (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS discount_types (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('PERCENTAGE', 'FLAT')),
    value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS fee_structures (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL,
    academic_year_id TEXT NOT NULL,
    installment_label TEXT NOT NULL,
    total_amount REAL NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fee_structure_sections (
    structure_id TEXT NOT NULL,
    section_id TEXT NOT NULL,
    PRIMARY KEY (structure_id, section_id),
    FOREIGN KEY (structure_id) REFERENCES fee_structures(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS fee_structure_amounts (
    structure_id TEXT NOT NULL,
    fee_type_id TEXT NOT NULL,
    amount REAL NOT NULL,
    PRIMARY KEY (structure_id, fee_type_id),
    FOREIGN KEY (structure_id) REFERENCES fee_structures(id) ON DELETE CASCADE,
    FOREIGN KEY (fee_type_id) REFERENCES fee_types(id)
);

CREATE TABLE IF NOT EXISTS fee_structure_due_dates (
    structure_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    due_date TEXT NOT NULL,
    PRIMARY KEY (structure_id, position),
    FOREIGN KEY (structure_id) REFERENCES fee_structures(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS late_fee_rules (
    id TEXT PRIMARY KEY,
    academic_year_id TEXT NOT NULL,
    amount REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS late_fee_rule_classes (
    rule_id TEXT NOT NULL,
    class_id TEXT NOT NULL,
    PRIMARY KEY (rule_id, class_id),
    FOREIGN KEY (rule_id) REFERENCES late_fee_rules(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS student_fees (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    fee_structure_id TEXT NOT NULL,
    academic_year_id TEXT NOT NULL,
    due_date TEXT NOT NULL,
    status TEXT NOT NULL,
    fee_total_amount REAL NOT NULL,
    is_bus_taken INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (fee_structure_id) REFERENCES fee_structures(id)
);

CREATE TABLE IF NOT EXISTS student_bus_fees (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    academic_year_id TEXT NOT NULL,
    route_destination TEXT NOT NULL,
    amount REAL NOT NULL,
    due_date TEXT NOT NULL,
    status TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    student_fee_id TEXT,
    student_bus_fee_id TEXT,
    fees_structure_id TEXT NOT NULL DEFAULT '',
    amount REAL NOT NULL,
    mode TEXT NOT NULL,
    paid_on TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    CHECK ((student_fee_id IS NULL) <> (student_bus_fee_id IS NULL)),
    FOREIGN KEY (student_fee_id) REFERENCES student_fees(id),
    FOREIGN KEY (student_bus_fee_id) REFERENCES student_bus_fees(id)
);

CREATE TABLE IF NOT EXISTS late_fee_records (
    id TEXT PRIMARY KEY,
    student_fee_id TEXT NOT NULL,
    late_fee_rule_id TEXT,
    amount REAL NOT NULL,
    is_waived INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    UNIQUE (student_fee_id, late_fee_rule_id),
    FOREIGN KEY (student_fee_id) REFERENCES student_fees(id)
);

CREATE INDEX IF NOT EXISTS idx_student_fees_student_id ON student_fees(student_id);
CREATE INDEX IF NOT EXISTS idx_student_fees_year ON student_fees(academic_year_id);
CREATE INDEX IF NOT EXISTS idx_student_bus_fees_year ON student_bus_fees(academic_year_id);
CREATE INDEX IF NOT EXISTS idx_payments_student_fee_id ON payments(student_fee_id);
CREATE INDEX IF NOT EXISTS idx_payments_student_bus_fee_id ON payments(student_bus_fee_id);
CREATE INDEX IF NOT EXISTS idx_late_fee_records_fee_id ON late_fee_records(student_fee_id);
CREATE INDEX IF NOT EXISTS idx_fee_structures_year ON fee_structures(academic_year_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
