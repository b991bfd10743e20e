package dialect

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"mysql", DialectType("mysql"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantDriver string
		wantErr    bool
	}{
		{"sqlite", "sqlite", "sqlite", false},
		{"sqlite3", "sqlite", "sqlite", false},
		{"postgres", "postgres", "pgx", false},
		{"PGX", "postgres", "pgx", false},
		{"unknown", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
			if d.DriverName() != tt.wantDriver {
				t.Errorf("DriverName() = %v, want %v", d.DriverName(), tt.wantDriver)
			}
		})
	}
}

func TestSQLiteDialect_Rebind(t *testing.T) {
	d := &sqliteDialect{}
	query := "SELECT * FROM conversation_turns WHERE user_id = ? LIMIT ?"
	if got := d.Rebind(query); got != query {
		t.Errorf("Rebind() = %v, want %v", got, query)
	}
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := &postgresDialect{}
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM products WHERE code = ?", "SELECT * FROM products WHERE code = $1"},
		{"DELETE FROM conversation_turns WHERE user_id = ? AND conversation_id = ?", "DELETE FROM conversation_turns WHERE user_id = $1 AND conversation_id = $2"},
		{"SELECT * FROM orders", "SELECT * FROM orders"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := d.Rebind(tt.query); got != tt.want {
				t.Errorf("Rebind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLiteDialect_UpsertClause(t *testing.T) {
	d := &sqliteDialect{}

	if got, want := d.UpsertClause("code", nil), "ON CONFLICT(code) DO NOTHING"; got != want {
		t.Errorf("UpsertClause() = %v, want %v", got, want)
	}
	got := d.UpsertClause("code", []string{"name", "price"})
	want := "ON CONFLICT(code) DO UPDATE SET name=excluded.name, price=excluded.price"
	if got != want {
		t.Errorf("UpsertClause() = %v, want %v", got, want)
	}
}

func TestPostgresDialect_UpsertClause(t *testing.T) {
	d := &postgresDialect{}

	if got, want := d.UpsertClause("code", nil), "ON CONFLICT (code) DO NOTHING"; got != want {
		t.Errorf("UpsertClause() = %v, want %v", got, want)
	}
	got := d.UpsertClause("code", []string{"name", "price"})
	want := "ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price"
	if got != want {
		t.Errorf("UpsertClause() = %v, want %v", got, want)
	}
}

func TestDialect_Types(t *testing.T) {
	tests := []struct {
		name          string
		dialect       Dialect
		timestampType string
		realType      string
	}{
		{"sqlite", &sqliteDialect{}, "TIMESTAMP", "REAL"},
		{"postgres", &postgresDialect{}, "TIMESTAMP WITH TIME ZONE", "DOUBLE PRECISION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.TimestampType(); got != tt.timestampType {
				t.Errorf("TimestampType() = %v, want %v", got, tt.timestampType)
			}
			if got := tt.dialect.RealType(); got != tt.realType {
				t.Errorf("RealType() = %v, want %v", got, tt.realType)
			}
		})
	}
}

func TestDialect_PragmaStatements(t *testing.T) {
	if len((&sqliteDialect{}).PragmaStatements()) == 0 {
		t.Error("SQLite should have pragma statements")
	}
	if (&postgresDialect{}).PragmaStatements() != nil {
		t.Error("PostgreSQL should not have pragma statements")
	}
}
