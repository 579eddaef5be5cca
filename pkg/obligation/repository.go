package obligation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finora/finora/pkg/recurrence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	ListExpenses(ctx context.Context, userId int, onlyActive bool) ([]RecurringExpense, error)
	GetExpense(ctx context.Context, userId int, uid uuid.UUID) (RecurringExpense, error)
	StoreExpense(ctx context.Context, userId int, expense RecurringExpense) (RecurringExpense, error)
	UpdateExpense(ctx context.Context, userId int, expense RecurringExpense) (RecurringExpense, error)
	DeleteExpense(ctx context.Context, userId int, uid uuid.UUID) error
	ListCategories(ctx context.Context, userId int) ([]Category, error)
	StoreCategory(ctx context.Context, userId int, category Category) (Category, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectExpense = `SELECT o.id, o.uid, o.description, o.amount::text, o.active, o.type, o.start_date, o.frequency,
       c.id, c.name, c.color, c.icon
FROM recurring_obligation o
LEFT JOIN category c ON c.id = o.category_id`

func (r *RepositoryImpl) ListExpenses(ctx context.Context, userId int, onlyActive bool) ([]RecurringExpense, error) {
	query := selectExpense + ` WHERE o.user_id = $1 AND (NOT $2 OR o.active) ORDER BY o.id`
	rows, err := r.db.Query(ctx, query, userId, onlyActive)
	if err != nil {
		log.Errorf("failed to list recurring expenses: %v", err)
		return nil, err
	}
	defer rows.Close()

	expenses := make([]RecurringExpense, 0, 16)
	byId := make(map[int]int)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			log.Errorf("failed to scan recurring expense: %v", err)
			return nil, err
		}
		byId[expense.Id] = len(expenses)
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over recurring expenses: %v", err)
		return nil, err
	}

	if len(expenses) == 0 {
		return expenses, nil
	}
	ids := make([]int, 0, len(expenses))
	for id := range byId {
		ids = append(ids, id)
	}
	dates, err := r.scheduledDates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, idx := range byId {
		expenses[idx].ScheduledDates = dates[id]
	}
	return expenses, nil
}

func (r *RepositoryImpl) GetExpense(ctx context.Context, userId int, uid uuid.UUID) (RecurringExpense, error) {
	query := selectExpense + ` WHERE o.user_id = $1 AND o.uid = $2`
	expense, err := scanExpense(r.db.QueryRow(ctx, query, userId, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return RecurringExpense{}, ErrExpenseNotFound
	} else if err != nil {
		log.Errorf("failed to get recurring expense %s: %v", uid, err)
		return RecurringExpense{}, err
	}

	dates, err := r.scheduledDates(ctx, []int{expense.Id})
	if err != nil {
		return RecurringExpense{}, err
	}
	expense.ScheduledDates = dates[expense.Id]
	return expense, nil
}

func (r *RepositoryImpl) StoreExpense(ctx context.Context, userId int, expense RecurringExpense) (RecurringExpense, error) {
	if expense.Uid == uuid.Nil {
		expense.Uid = uuid.New()
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `INSERT INTO recurring_obligation
    (uid, user_id, description, amount, active, type, start_date, frequency, category_id)
VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9) RETURNING id`
		err := tx.QueryRow(ctx, query,
			expense.Uid,
			userId,
			expense.Description,
			expense.Amount.String(),
			expense.Active,
			string(expense.Type),
			toPgDate(expense.StartDate),
			string(expense.Frequency),
			categoryId(expense.Category),
		).Scan(&expense.Id)
		if err != nil {
			return fmt.Errorf("failed to insert recurring expense: %w", err)
		}
		return insertScheduledDates(ctx, tx, expense.Id, expense.ScheduledDates)
	})
	if err != nil {
		log.Errorf("failed to store recurring expense: %v", err)
		return RecurringExpense{}, err
	}
	return expense, nil
}

// UpdateExpense replaces the definition and the installment dates of an existing expense.
func (r *RepositoryImpl) UpdateExpense(ctx context.Context, userId int, expense RecurringExpense) (RecurringExpense, error) {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `UPDATE recurring_obligation
SET description = $1, amount = $2::text::numeric, active = $3, type = $4, start_date = $5, frequency = $6,
    category_id = $7, updated_at = now()
WHERE user_id = $8 AND uid = $9
RETURNING id`
		err := tx.QueryRow(ctx, query,
			expense.Description,
			expense.Amount.String(),
			expense.Active,
			string(expense.Type),
			toPgDate(expense.StartDate),
			string(expense.Frequency),
			categoryId(expense.Category),
			userId,
			expense.Uid,
		).Scan(&expense.Id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExpenseNotFound
		} else if err != nil {
			return fmt.Errorf("failed to update recurring expense: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM installment_date WHERE obligation_id = $1`, expense.Id); err != nil {
			return fmt.Errorf("failed to clear installment dates: %w", err)
		}
		return insertScheduledDates(ctx, tx, expense.Id, expense.ScheduledDates)
	})
	if err != nil {
		if !errors.Is(err, ErrExpenseNotFound) {
			log.Errorf("failed to update recurring expense %s: %v", expense.Uid, err)
		}
		return RecurringExpense{}, err
	}
	return expense, nil
}

func (r *RepositoryImpl) DeleteExpense(ctx context.Context, userId int, uid uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM recurring_obligation WHERE user_id = $1 AND uid = $2`, userId, uid)
	if err != nil {
		log.Errorf("failed to delete recurring expense %s: %v", uid, err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func (r *RepositoryImpl) ListCategories(ctx context.Context, userId int) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, color, icon FROM category WHERE user_id = $1 ORDER BY name`, userId)
	if err != nil {
		log.Errorf("failed to list categories: %v", err)
		return nil, err
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.Id, &c.Name, &c.Color, &c.Icon)
		return c, err
	})
	if err != nil {
		log.Errorf("failed to scan categories: %v", err)
		return nil, err
	}
	return categories, nil
}

func (r *RepositoryImpl) StoreCategory(ctx context.Context, userId int, category Category) (Category, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO category (user_id, name, color, icon) VALUES ($1, $2, $3, $4) RETURNING id`,
		userId, category.Name, category.Color, category.Icon,
	).Scan(&category.Id)
	if err != nil {
		log.Errorf("failed to store category: %v", err)
		return Category{}, err
	}
	return category, nil
}

func (r *RepositoryImpl) scheduledDates(ctx context.Context, obligationIds []int) (map[int][]recurrence.CalendarDate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT obligation_id, scheduled_date FROM installment_date WHERE obligation_id = ANY($1) ORDER BY scheduled_date`,
		obligationIds)
	if err != nil {
		log.Errorf("failed to get installment dates: %v", err)
		return nil, err
	}
	defer rows.Close()

	dates := make(map[int][]recurrence.CalendarDate)
	for rows.Next() {
		var id int
		var d time.Time
		if err := rows.Scan(&id, &d); err != nil {
			log.Errorf("failed to scan installment date: %v", err)
			return nil, err
		}
		dates[id] = append(dates[id], recurrence.DateOf(d))
	}
	return dates, rows.Err()
}

func insertScheduledDates(ctx context.Context, tx pgx.Tx, obligationId int, dates []recurrence.CalendarDate) error {
	if len(dates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range dates {
		batch.Queue(`INSERT INTO installment_date (obligation_id, scheduled_date) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			obligationId, d.Time(time.UTC))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert installment dates: %w", err)
	}
	return nil
}

func scanExpense(row pgx.Row) (RecurringExpense, error) {
	var e RecurringExpense
	var amount, expenseType, frequency string
	var startDate *time.Time
	var catId *int
	var catName, catColor, catIcon *string

	err := row.Scan(&e.Id, &e.Uid, &e.Description, &amount, &e.Active, &expenseType, &startDate, &frequency,
		&catId, &catName, &catColor, &catIcon)
	if err != nil {
		return RecurringExpense{}, err
	}

	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return RecurringExpense{}, fmt.Errorf("invalid amount %q for expense %d: %w", amount, e.Id, err)
	}
	e.Type = ExpenseType(expenseType)
	e.Frequency = recurrence.Frequency(frequency)
	if startDate != nil {
		d := recurrence.DateOf(*startDate)
		e.StartDate = &d
	}
	if catId != nil {
		e.Category = &Category{Id: *catId, Name: deref(catName), Color: deref(catColor), Icon: deref(catIcon)}
	}
	return e, nil
}

func toPgDate(d *recurrence.CalendarDate) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time(time.UTC)
	return &t
}

func categoryId(c *Category) *int {
	if c == nil || c.Id == 0 {
		return nil
	}
	return &c.Id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
