package persistent

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base32"
	"flag"
	"fmt"
	"testing"

	"github.com/eventive/eventive/pgdb"
	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	flag.Parse()

	if !testing.Short() {
		logrus.Infoln("Starting test db.")
		shutdownDb, err := createTestDb()
		if err != nil {
			logrus.WithError(err).Fatalln("Could not create test database.")
			return
		}
		defer shutdownDb()
	}

	m.Run()
}

func openTestStore(t *testing.T) *ProfileStore {
	t.Helper()
	if testing.Short() {
		t.SkipNow()
	}
	ctx := context.Background()
	db := pgdb.OpenTest(ctx)
	t.Cleanup(func() { db.Close() })

	_, err := db.NewCreateTable().
		IfNotExists().
		Model((*Profile)(nil)).
		Exec(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return &ProfileStore{DB: db}
}

// Start a postgres docker container and point pgdb's test datasource at
// it. Returns the shutdown func OR an error.
func createTestDb() (func(), error) {
	psgPassB := make([]byte, 30)
	if _, err := rand.Read(psgPassB); err != nil {
		return nil, fmt.Errorf("password generate: %w", err)
	}
	psgPass := base32.StdEncoding.EncodeToString(psgPassB)

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("docker connect: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16.1",
		Env:        []string{"POSTGRES_PASSWORD=" + psgPass},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return nil, fmt.Errorf("resource start: %w", err)
	}
	resource.Expire(120)
	shutdownResource := func() {
		if err := pool.Purge(resource); err != nil {
			logrus.WithError(err).Warningln("Could not purge resource.")
		}
	}

	err = pool.Retry(func() error {
		pgDsn := fmt.Sprintf("postgresql://postgres:%s@localhost:%s/postgres?sslmode=disable",
			psgPass, resource.GetPort("5432/tcp"))
		sqldb, err := sql.Open("pg", pgDsn)
		if err != nil {
			return fmt.Errorf("sql open: %w", err)
		}
		defer sqldb.Close()
		if err = sqldb.Ping(); err != nil {
			return fmt.Errorf("sqldb ping: %w", err)
		}
		pgdb.SetTestEnvDsn(pgDsn)
		return nil
	})
	if err != nil {
		shutdownResource()
		return nil, fmt.Errorf("database connect: %w", err)
	}
	return shutdownResource, nil
}
