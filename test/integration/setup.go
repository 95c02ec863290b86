package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	handler "github.com/vncsmyrnk/awards/internal/adapters/handler/http"
	repo "github.com/vncsmyrnk/awards/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/awards/internal/adapters/tunnel/sshtunnel"
	"github.com/vncsmyrnk/awards/internal/core/ports"
	"github.com/vncsmyrnk/awards/internal/core/services"
)

const (
	dbName     = "testdb"
	dbUser     = "user"
	dbPassword = "password"
)

type TestApp struct {
	DB          *sql.DB
	Server      *httptest.Server
	Client      *http.Client
	ResultsSvc  ports.ResultsService
	DBContainer testcontainers.Container
}

func setupPostgresContainer(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func applyMigrations(db *sql.DB) error {
	dirPath := "../../internal/adapters/repository/postgres/migrations"

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		fullPath := filepath.Join(dirPath, entry.Name())
		content, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		_, err = db.Exec(string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// setupTestApp serves the real router against a fresh database. Every
// request opens its own connection through a passthrough tunnel.
func setupTestApp(t *testing.T) *TestApp {
	ctx := context.Background()
	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	err = applyMigrations(db)
	require.NoError(t, err)

	host, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	port, err := dbContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	provider := repo.NewProvider(
		sshtunnel.Passthrough{Addr: fmt.Sprintf("%s:%s", host, port.Port())},
		repo.DBConfig{User: dbUser, Password: dbPassword, Name: dbName},
		nil,
	)

	voteSvc := services.NewVoteService(provider, repo.NewVoterRepository(), repo.NewVoteLedger(nil), 10*time.Second, nil)
	popularitySvc := services.NewPopularityService(provider, repo.NewPopularityRepository(), nil, nil)
	settingsSvc := services.NewSettingsService(true, nil)
	resultsSvc := services.NewResultsService(provider, repo.NewStandingsRepository())

	router := handler.NewHandler(
		handler.NewVoteHandler(voteSvc, nil),
		handler.NewPopularityHandler(popularitySvc, nil),
		handler.NewSettingsHandler(settingsSvc, nil),
	)

	server := httptest.NewServer(router)

	return &TestApp{
		DB:          db,
		Server:      server,
		Client:      server.Client(),
		ResultsSvc:  resultsSvc,
		DBContainer: dbContainer,
	}
}

func (app *TestApp) createVoter(t *testing.T) string {
	t.Helper()

	token := uuid.NewString()
	_, err := app.DB.Exec("INSERT INTO voters (token) VALUES ($1)", token)
	require.NoError(t, err)
	return token
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Server.Close()
	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}
