//go:build integration

package helpers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/hbomb79/mediatab/internal/database"
	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	SQLDialect          = "postgres"
	SQLConnectionString = "host=%s user=%s password=%s dbname=%s port=%s sslmode=disable"
	Host                = "0.0.0.0"
	User                = "postgres"
	Password            = "postgres"
	AdminDBName         = "postgres"
	MasterDBName        = "MEDIATAB_DB"
	Port                = "5432"
)

var (
	ctx       = context.Background()
	dbManager = newDatabaseManager(MasterDBName)
)

// databaseManager is an internal test helper which facilitates
// the templating of a single 'master' database in a shared postgresql
// docker instance. This allows tests to use individual databases without
// needing to create multiple instances of docker. This manager will:
//   - automatically spawn the container,
//   - migrate the master database using the embedded migrations,
//   - mark the master database as a template, and,
//   - facilitate provisioning of new databases based off that master database.
type databaseManager struct {
	*sync.Mutex
	masterDatabaseName string
	pgContainer        testcontainers.Container
	connection         *sql.DB
}

func newDatabaseManager(databaseName string) *databaseManager {
	return &databaseManager{
		Mutex:              &sync.Mutex{},
		masterDatabaseName: databaseName,
	}
}

// ProvisionDatabase creates a new, migrated, database for the test and returns
// the config required to connect to it. The database is named after the test.
func ProvisionDatabase(t *testing.T) database.DatabaseConfig {
	name := strings.ToLower(strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name()))
	dbManager.provisionDB(t, name)

	return database.DatabaseConfig{
		Enabled:  true,
		User:     User,
		Password: Password,
		Name:     name,
		Host:     Host,
		Port:     Port,
	}
}

// TeardownDatabases closes the management connection and stops the
// postgres container (if one was started). Intended for use in TestMain.
func TeardownDatabases() {
	dbManager.disconnect()
}

func (manager *databaseManager) provisionDB(t *testing.T, databaseName string) {
	manager.Lock()
	defer manager.Unlock()

	if databaseName == strings.ToLower(manager.masterDatabaseName) {
		t.Fatalf("cannot provision database '%s' as this DB is the master database", databaseName)
		return
	}

	if manager.connection == nil {
		t.Log("Database provisioning request received but manager not started yet. Initializing database management...")
		manager.connect(t)
		manager.markMasterDB(t)
		t.Log("Database management initialised!")
	}

	_, err := manager.connection.Exec(fmt.Sprintf(`CREATE DATABASE "%s" TEMPLATE "%s"`, databaseName, manager.masterDatabaseName))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code == "42P04" {
				t.Logf("Database '%s' already provisioned. Reusing database", databaseName)
				return
			}
		}

		t.Fatalf("failed to create provision database '%s' based on template database '%s': (%T) %s", databaseName, manager.masterDatabaseName, err, err)
	}
}

func (manager *databaseManager) connect(t *testing.T) {
	if manager.pgContainer == nil {
		manager.spawnPostgres(t)
	} else if !manager.pgContainer.IsRunning() {
		t.Fatalf("failed to connect database manager, container exists but not running")
	}

	// Management happens over the admin database, as postgres refuses to
	// use a template database which has open connections.
	manager.connection = open(t, AdminDBName)
	t.Log("Database connection established!")
}

func (manager *databaseManager) markMasterDB(t *testing.T) {
	t.Log("Migrating master database...")
	master := open(t, manager.masterDatabaseName)
	if err := database.Migrate(master); err != nil {
		_ = master.Close()
		t.Fatalf("failed to migrate master database (%s): %s", manager.masterDatabaseName, err)
	}
	_ = master.Close()

	t.Log("Master DB migrated, marking master database as template...")
	if _, err := manager.connection.Exec(fmt.Sprintf(`ALTER DATABASE "%s" WITH is_template TRUE`, manager.masterDatabaseName)); err != nil {
		t.Fatalf("failed to mark master database (%s) as template: %s", manager.masterDatabaseName, err)
	}
}

func (manager *databaseManager) spawnPostgres(t *testing.T) {
	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase(MasterDBName),
		postgres.WithUsername(User),
		postgres.WithPassword(Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second)),
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) { hostConfig.NetworkMode = "host" }),
	)
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
		return
	}

	manager.pgContainer = postgresC
}

func (manager *databaseManager) disconnect() {
	manager.Lock()
	defer manager.Unlock()

	if manager.connection != nil {
		_ = manager.connection.Close()
		manager.connection = nil
	}

	if manager.pgContainer != nil && manager.pgContainer.IsRunning() {
		fmt.Println("Tearing down Postgres container...")
		timeout := 5 * time.Second
		if err := manager.pgContainer.Stop(ctx, &timeout); err != nil {
			fmt.Printf("WARNING: failed to stop Postgres container: %s\n", err)
		}
		manager.pgContainer = nil
	}
}

// open connects to the database named, retrying while the server starts.
func open(t *testing.T, databaseName string) *sql.DB {
	dsn := fmt.Sprintf(SQLConnectionString, Host, User, Password, databaseName, Port)
	db, err := sql.Open(SQLDialect, dsn)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %s", err)
	}

	const attempts = 5
	for attempt := 1; ; attempt++ {
		err := db.Ping()
		if err == nil {
			return db
		} else if attempt == attempts {
			t.Fatalf("all database connection attempts FAILED: %s", err)
		}

		t.Logf("DB connection attempt (%v/%v) failed... Retrying in 3s", attempt, attempts)
		time.Sleep(3 * time.Second)
	}
}
