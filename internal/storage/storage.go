package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

var (
	ErrNotFound         = errors.New("response not found")
	ErrDuplicateTrigger = errors.New("response for this trigger already exists")
)

const (
	selectColumns = "SELECT id, trigger_text, response, active FROM chat_responses"

	queryList      = selectColumns + " ORDER BY id"
	queryByID      = selectColumns + " WHERE id = ?"
	queryByTrigger = selectColumns + " WHERE trigger_text = ?"
	queryMatch     = selectColumns + " WHERE active = ? AND LOWER(trigger_text) LIKE ? ESCAPE '!' ORDER BY id LIMIT 1"
	queryInsert    = "INSERT INTO chat_responses (trigger_text, response, active) VALUES (?, ?, ?)"
	queryUpdate    = "UPDATE chat_responses SET trigger_text = ?, response = ?, active = ? WHERE id = ?"
	queryDelete    = "DELETE FROM chat_responses WHERE id = ?"
)

// Response is a trigger phrase and the canned reply served for it.
type Response struct {
	ID       int64  `db:"id" json:"id"`
	Trigger  string `db:"trigger_text" json:"trigger"`
	Response string `db:"response" json:"response"`
	Active   bool   `db:"active" json:"active"`
}

type Input struct {
	Trigger  string
	Response string
	Active   bool
}

type Store struct {
	db      *sqlx.DB
	dialect string
}

// Open connects to databaseURL. postgres:// and mysql:// URLs select those
// drivers, anything else is treated as a SQLite path with an optional sqlite:// prefix.
func Open(databaseURL string) (*Store, error) {
	driver, dsn, err := driverFor(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return NewWithDB(db), nil
}

func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db, dialect: dialectOf(db.DriverName())}
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate() error {
	dir := path.Join("migrations", s.dialect)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join(dir, file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Response, error) {
	responses := []Response{}
	if err := s.db.SelectContext(ctx, &responses, s.db.Rebind(queryList)); err != nil {
		return nil, err
	}
	return responses, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Response, error) {
	return s.getOne(ctx, queryByID, id)
}

func (s *Store) Create(ctx context.Context, in Input) (Response, error) {
	if _, err := s.getOne(ctx, queryByTrigger, in.Trigger); err == nil {
		return Response{}, ErrDuplicateTrigger
	} else if !errors.Is(err, ErrNotFound) {
		return Response{}, err
	}

	var id int64
	if s.dialect == "postgres" {
		err := s.db.QueryRowxContext(ctx, s.db.Rebind(queryInsert+" RETURNING id"), in.Trigger, in.Response, in.Active).Scan(&id)
		if err != nil {
			return Response{}, translate(err)
		}
	} else {
		result, err := s.db.ExecContext(ctx, s.db.Rebind(queryInsert), in.Trigger, in.Response, in.Active)
		if err != nil {
			return Response{}, translate(err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return Response{}, err
		}
	}
	return Response{ID: id, Trigger: in.Trigger, Response: in.Response, Active: in.Active}, nil
}

// Update replaces every field of the row. Moving to a trigger owned by
// another row fails with ErrDuplicateTrigger.
func (s *Store) Update(ctx context.Context, id int64, in Input) (Response, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Response{}, err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(queryUpdate), in.Trigger, in.Response, in.Active, id); err != nil {
		return Response{}, translate(err)
	}
	return Response{ID: id, Trigger: in.Trigger, Response: in.Response, Active: in.Active}, nil
}

// Delete removes the row and returns it as it was.
func (s *Store) Delete(ctx context.Context, id int64) (Response, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(queryDelete), id); err != nil {
		return Response{}, err
	}
	return existing, nil
}

// Match returns the first active response whose trigger contains input,
// ignoring case.
func (s *Store) Match(ctx context.Context, input string) (Response, error) {
	pattern := "%" + escapeLike(strings.ToLower(input)) + "%"
	return s.getOne(ctx, queryMatch, true, pattern)
}

func (s *Store) getOne(ctx context.Context, query string, args ...any) (Response, error) {
	var response Response
	if err := s.db.GetContext(ctx, &response, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, ErrNotFound
		}
		return Response{}, err
	}
	return response, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

func translate(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicateTrigger
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func driverFor(databaseURL string) (string, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx", databaseURL, nil
	case strings.HasPrefix(databaseURL, "mysql://"):
		dsn, err := mysqlDSN(databaseURL)
		return "mysql", dsn, err
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(databaseURL, "sqlite://"), nil
	case databaseURL == "":
		return "", "", errors.New("database url is empty")
	default:
		return "sqlite", databaseURL, nil
	}
}

func mysqlDSN(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = parsed.Host
	if parsed.Port() == "" {
		cfg.Addr = parsed.Host + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(parsed.Path, "/")
	if parsed.User != nil {
		cfg.User = parsed.User.Username()
		cfg.Passwd, _ = parsed.User.Password()
	}
	if query := parsed.Query(); len(query) > 0 {
		cfg.Params = map[string]string{}
		for key := range query {
			cfg.Params[key] = query.Get(key)
		}
	}
	return cfg.FormatDSN(), nil
}

func dialectOf(driver string) string {
	switch driver {
	case "pgx", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	default:
		return "sqlite"
	}
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
