package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

func (c *Credentials) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, cred *Credentials) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", cred.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "carts_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateCart(ctx context.Context, cart *domain.RemoteCart) error {
	productsJSON, err := json.Marshal(cart.Products)
	if err != nil {
		return fmt.Errorf("failed to marshal cart products: %w", err)
	}

	query := `INSERT INTO carts (user_id, date, products, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, cart.UserID, cart.Date, productsJSON).Scan(&cart.ID); err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetCartByID(ctx context.Context, id int64) (*domain.RemoteCart, error) {
	query := `SELECT id, user_id, to_char(date, 'YYYY-MM-DD'), products
	          FROM carts WHERE id = $1`

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart by id: %w", err)
	}
	return cart, nil
}

func (r *PostgresRepository) ListCartsByUserID(ctx context.Context, userID int64) ([]domain.RemoteCart, error) {
	query := `SELECT id, user_id, to_char(date, 'YYYY-MM-DD'), products
	          FROM carts WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query carts by user id: %w", err)
	}
	defer rows.Close()

	carts := make([]domain.RemoteCart, 0)
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		carts = append(carts, *cart)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return carts, nil
}

func (r *PostgresRepository) Close(context.Context) error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (*domain.RemoteCart, error) {
	var cart domain.RemoteCart
	var productsJSON []byte
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.Date, &productsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(productsJSON, &cart.Products); err != nil {
		return nil, fmt.Errorf("unmarshal cart products: %w", err)
	}
	return &cart, nil
}
