// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/bcrypt"

	"github.com/pedrobots/bluebot-rental/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MaxResellers — предельный размер ростера авторизованных продавцов.
const MaxResellers = 10

// ErrPlanNotFound возвращается, если тарифный план не найден.
var (
	ErrPlanNotFound = errors.New("plan not found")
	// ErrPlanExists возвращается при попытке создать план с занятым идентификатором.
	ErrPlanExists = errors.New("plan already exists")
	// ErrResellerExists возвращается при попытке добавить продавца с уже известным номером.
	ErrResellerExists = errors.New("reseller already exists")
	// ErrResellerLimit возвращается, когда ростер продавцов заполнен.
	ErrResellerLimit = errors.New("reseller limit reached")
	// ErrResellerNotFound возвращается, если продавец не найден.
	ErrResellerNotFound = errors.New("reseller not found")
	// ErrSessionNotFound возвращается, если сессия чата не найдена.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrSettingsNotFound возвращается, если настройки магазина отсутствуют.
	ErrSettingsNotFound = errors.New("settings not found")
)

// Значения по умолчанию, засеваемые при первом запуске с пустой базой.
// Повторяют стартовое наполнение витрины магазина.
var defaultPlans = []model.Plan{
	{ID: "plan-mensal", Name: "Mensal Blue", PriceCents: 6990, Days: 30, Interval: "30 dias", Description: "Gestão completa para 30 dias de operação ininterrupta.", IsActive: true},
	{ID: "plan-trimestral", Name: "Trimestral Pro", PriceCents: 18990, Days: 90, Interval: "90 dias", Description: "Alta performance para 90 dias. O favorito dos grupos!", IsActive: true, IsPopular: true},
	{ID: "plan-anual", Name: "Anual Elite", PriceCents: 69000, Days: 365, Interval: "365 dias", Description: "365 dias de autonomia total. Máxima economia.", IsActive: true},
}

const (
	defaultStoreName   = "⏤͟͟͞͞ BLUE ALUGUEL ⛤⃗ 💙"
	defaultOwnerName   = "Pedro Bots"
	defaultOwnerNumber = "5599981175724"
	defaultPixKey      = "bqoqb2nroqo1hq9sao"
	defaultAdminPin    = "0000"
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт репозиторий, применяет миграции и засевает
// настройки и планы по умолчанию при первом запуске.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// База может подниматься параллельно с сервисом, поэтому ping с бэкоффом.
	backoff := retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := r.ensureDefaults(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ensureDefaults(ctx context.Context) error {
	pinHash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default pin: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO settings (id, store_name, owner_name, owner_number, pix_key, admin_pin_hash)
		 VALUES (1, $1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		defaultStoreName, defaultOwnerName, defaultOwnerNumber, defaultPixKey, pinHash,
	)
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	var planCount int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM plans`).Scan(&planCount); err != nil {
		return fmt.Errorf("count plans: %w", err)
	}
	if planCount > 0 {
		return nil
	}

	for _, p := range defaultPlans {
		if err := r.CreatePlan(ctx, p); err != nil && !errors.Is(err, ErrPlanExists) {
			return fmt.Errorf("seed plan %s: %w", p.ID, err)
		}
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetSettings возвращает настройки магазина.
func (r *PostgresRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT store_name, owner_name, owner_number, pix_key, admin_pin_hash, site_url
		 FROM settings WHERE id = 1`,
	)

	var s model.Settings
	err := row.Scan(&s.StoreName, &s.OwnerName, &s.OwnerNumber, &s.PixKey, &s.AdminPinHash, &s.SiteURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &s, nil
}

// UpdateSettings полностью перезаписывает настройки магазина.
func (r *PostgresRepository) UpdateSettings(ctx context.Context, s model.Settings) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE settings
		 SET store_name = $1, owner_name = $2, owner_number = $3, pix_key = $4, admin_pin_hash = $5, site_url = $6
		 WHERE id = 1`,
		s.StoreName, s.OwnerName, s.OwnerNumber, s.PixKey, s.AdminPinHash, s.SiteURL,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// ListPlans возвращает тарифные планы в порядке добавления.
func (r *PostgresRepository) ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	query := `SELECT id, name, price_cents, days, interval_label, description, is_active, is_popular
		 FROM plans ORDER BY position`
	if activeOnly {
		query = `SELECT id, name, price_cents, days, interval_label, description, is_active, is_popular
		 FROM plans WHERE is_active ORDER BY position`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Days, &p.Interval, &p.Description, &p.IsActive, &p.IsPopular); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return plans, nil
}

// GetPlan возвращает тарифный план по идентификатору.
func (r *PostgresRepository) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, price_cents, days, interval_label, description, is_active, is_popular
		 FROM plans WHERE id = $1`,
		id,
	)

	var p model.Plan
	err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Days, &p.Interval, &p.Description, &p.IsActive, &p.IsPopular)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}

	return &p, nil
}

// CreatePlan создаёт тарифный план.
func (r *PostgresRepository) CreatePlan(ctx context.Context, p model.Plan) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO plans (id, name, price_cents, days, interval_label, description, is_active, is_popular)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.PriceCents, p.Days, p.Interval, p.Description, p.IsActive, p.IsPopular,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrPlanExists, p.ID)
		}
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// UpdatePlan обновляет тарифный план.
func (r *PostgresRepository) UpdatePlan(ctx context.Context, p model.Plan) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE plans
		 SET name = $2, price_cents = $3, days = $4, interval_label = $5, description = $6, is_active = $7, is_popular = $8
		 WHERE id = $1`,
		p.ID, p.Name, p.PriceCents, p.Days, p.Interval, p.Description, p.IsActive, p.IsPopular,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// DeletePlan удаляет тарифный план. Существующие заказы сохраняют его идентификатор.
func (r *PostgresRepository) DeletePlan(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// ListResellers возвращает ростер продавцов в порядке добавления.
func (r *PostgresRepository) ListResellers(ctx context.Context) ([]model.Reseller, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, whatsapp, is_active, created_at FROM resellers ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select resellers: %w", err)
	}
	defer rows.Close()

	var resellers []model.Reseller
	for rows.Next() {
		var res model.Reseller
		if err := rows.Scan(&res.ID, &res.Name, &res.WhatsApp, &res.IsActive, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reseller: %w", err)
		}
		resellers = append(resellers, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return resellers, nil
}

// AddReseller добавляет продавца в ростер. Ростер ограничен MaxResellers
// записями; подсчёт и вставка выполняются в одной транзакции под блокировкой.
func (r *PostgresRepository) AddReseller(ctx context.Context, name, whatsapp string) (*model.Reseller, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE resellers IN EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock resellers: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM resellers`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count resellers: %w", err)
	}
	if count >= MaxResellers {
		return nil, ErrResellerLimit
	}

	var res model.Reseller
	err = tx.QueryRow(ctx,
		`INSERT INTO resellers (name, whatsapp) VALUES ($1, $2) RETURNING id, name, whatsapp, is_active, created_at`,
		name, whatsapp,
	).Scan(&res.ID, &res.Name, &res.WhatsApp, &res.IsActive, &res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrResellerExists, whatsapp)
		}
		return nil, fmt.Errorf("insert reseller: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &res, nil
}

// RemoveReseller удаляет продавца из ростера.
func (r *PostgresRepository) RemoveReseller(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM resellers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reseller: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrResellerNotFound
	}
	return nil
}

// CreateOrder сохраняет оформленный заказ и возвращает его идентификатор.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO orders (customer_name, whatsapp, purpose, project_name, group_link, plan_id, free)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			o.CustomerName, o.WhatsAppNumber, o.Purpose, o.ProjectName, o.GroupLink, o.PlanID, o.Free,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

// ListOrders возвращает всю историю заказов, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_name, whatsapp, purpose, project_name, group_link, plan_id, free, created_at
		 FROM orders ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.WhatsAppNumber, &o.Purpose, &o.ProjectName, &o.GroupLink, &o.PlanID, &o.Free, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrCreateSession возвращает сессию чата, создавая её при первом обращении.
// Второе возвращаемое значение сообщает, была ли сессия только что создана.
func (r *PostgresRepository) GetOrCreateSession(ctx context.Context, id string) (*model.ChatSession, bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert session: %w", err)
	}
	created := cmdTag.RowsAffected() == 1

	row := r.pool.QueryRow(ctx,
		`SELECT id, step, selected_plan_id, draft_name, draft_whatsapp, draft_purpose, draft_project, draft_link, last_summary, created_at, updated_at
		 FROM chat_sessions WHERE id = $1`,
		id,
	)

	var s model.ChatSession
	err = row.Scan(&s.ID, &s.Step, &s.SelectedPlanID,
		&s.Draft.CustomerName, &s.Draft.WhatsAppNumber, &s.Draft.Purpose, &s.Draft.ProjectName, &s.Draft.GroupLink,
		&s.LastSummary, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrSessionNotFound
		}
		return nil, false, fmt.Errorf("get session: %w", err)
	}

	return &s, created, nil
}

// UpdateSession сохраняет состояние диалога сессии.
func (r *PostgresRepository) UpdateSession(ctx context.Context, s *model.ChatSession) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE chat_sessions
		 SET step = $2, selected_plan_id = $3,
		     draft_name = $4, draft_whatsapp = $5, draft_purpose = $6, draft_project = $7, draft_link = $8,
		     last_summary = $9, updated_at = now()
		 WHERE id = $1`,
		s.ID, s.Step, s.SelectedPlanID,
		s.Draft.CustomerName, s.Draft.WhatsAppNumber, s.Draft.Purpose, s.Draft.ProjectName, s.Draft.GroupLink,
		s.LastSummary,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// AppendMessage добавляет сообщение в журнал чата. Журнал только дополняется.
func (r *PostgresRepository) AppendMessage(ctx context.Context, m model.Message) (*model.Message, error) {
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO messages (session_id, sender, body, kind) VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			m.SessionID, string(m.Sender), m.Body, string(m.Kind),
		).Scan(&m.ID, &m.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &m, nil
}

// ListMessages возвращает журнал чата сессии в порядке вставки.
func (r *PostgresRepository) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, sender, body, kind, created_at
		 FROM messages WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var sender, kind string
		if err := rows.Scan(&m.ID, &m.SessionID, &sender, &m.Body, &kind, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = model.MessageSender(sender)
		m.Kind = model.MessageKind(kind)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}
