package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" database/sql driver
)

// FederationConfig describes an optional remote endpoint a server-mode
// project can point at instead of (or in addition to) its local embedded
// store, per §1 Non-goals ("network-remote storage" is out of scope for
// the core engine itself, but the daemon is still allowed to health-check
// a federated peer it was told about). Grounded on the teacher's
// internal/storage/dolt server-mode MySQL-wire-protocol connection: this
// package never federates writes, only pings for doctor reporting.
type FederationConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	User string `toml:"user"`
	TLS  bool   `toml:"tls"`
}

func (f FederationConfig) dsn() string {
	params := "parseTime=true&timeout=2s"
	if f.TLS {
		params += "&tls=true"
	}
	user := f.User
	if user == "" {
		user = "root"
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/?%s", user, f.Host, f.Port, params)
}

// PingFederation opens a short-lived MySQL-protocol connection to the
// configured federated endpoint and pings it. Used by DiagnoseServer to
// extend the server-mode doctor check to projects registered with a
// FederationConfig.
func PingFederation(ctx context.Context, f FederationConfig) error {
	db, err := sql.Open("mysql", f.dsn())
	if err != nil {
		return fmt.Errorf("lifecycle: opening federation connection to %s:%d: %w", f.Host, f.Port, err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("lifecycle: pinging federation endpoint %s:%d: %w", f.Host, f.Port, err)
	}
	return nil
}
