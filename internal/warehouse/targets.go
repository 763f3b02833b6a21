package warehouse

import (
	"context"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // driver registration side effect

	"github.com/thedatagata/control-plane/internal/sqlgen"
)

// Target names the warehouse deployment flavor selected on the CLI.
type Target string

const (
	// TargetSandbox is the file-local SQLite warehouse used for local
	// development and CI.
	TargetSandbox Target = "sandbox"
	// TargetDev is the managed-cloud warehouse, reached over a DSN built
	// from the one required credential env var.
	TargetDev Target = "dev"
)

// CredentialEnvVar is the one required credential env var for managed
// targets.
const CredentialEnvVar = "CONTROL_PLANE_WAREHOUSE_DSN"

// sqliteOpenMu serializes concurrent sql.Open of a freshly-created SQLite
// file; go-sqlite3 is known to return "database is locked" on a raced first
// open. Mirrors go/materialize/driver/sqlite/sqlite.go's sqliteOpenMu.
var sqliteOpenMu sync.Mutex

// OpenTarget opens the Warehouse Client for the given target. path is the
// SQLite file path for TargetSandbox; it is ignored for TargetDev, which
// instead reads its DSN from CredentialEnvVar.
func OpenTarget(ctx context.Context, target Target, path string, env func(string) string) (Client, error) {
	switch target {
	case TargetSandbox:
		sqliteOpenMu.Lock()
		defer sqliteOpenMu.Unlock()
		return Open(ctx, "sqlite3", path, sqlgen.SQLiteDialect())
	case TargetDev:
		dsn := env(CredentialEnvVar)
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("%s is required for --target dev", CredentialEnvVar)
		}
		// The concrete managed-warehouse driver (Snowflake/Redshift/BigQuery)
		// is registered by the deployment's build via a blank import; none of
		// those driver packages were present in the retrieved dependency set
		// (see DESIGN.md), so only the dialect generator is fixed here.
		return Open(ctx, "postgres", dsn, sqlgen.PostgresFamilyDialect())
	default:
		return nil, fmt.Errorf("unknown warehouse target %q", target)
	}
}
