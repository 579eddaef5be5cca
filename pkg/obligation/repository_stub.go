package obligation

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

type storedExpense struct {
	userId  int
	expense RecurringExpense
}

type RepositoryStub struct {
	nextId         int
	nextCategoryId int
	expenses       []storedExpense
	categories     map[int][]Category
	// Err, when set, is returned by every call.
	Err error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{categories: map[int][]Category{}}
}

func (r *RepositoryStub) ListExpenses(_ context.Context, userId int, onlyActive bool) ([]RecurringExpense, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	result := make([]RecurringExpense, 0)
	for _, s := range r.expenses {
		if s.userId == userId && (!onlyActive || s.expense.Active) {
			result = append(result, s.expense)
		}
	}
	return result, nil
}

func (r *RepositoryStub) GetExpense(_ context.Context, userId int, uid uuid.UUID) (RecurringExpense, error) {
	if r.Err != nil {
		return RecurringExpense{}, r.Err
	}
	idx := r.find(userId, uid)
	if idx < 0 {
		return RecurringExpense{}, ErrExpenseNotFound
	}
	return r.expenses[idx].expense, nil
}

func (r *RepositoryStub) StoreExpense(_ context.Context, userId int, expense RecurringExpense) (RecurringExpense, error) {
	if r.Err != nil {
		return RecurringExpense{}, r.Err
	}
	r.nextId++
	expense.Id = r.nextId
	if expense.Uid == uuid.Nil {
		expense.Uid = uuid.New()
	}
	r.expenses = append(r.expenses, storedExpense{userId: userId, expense: expense})
	return expense, nil
}

func (r *RepositoryStub) UpdateExpense(_ context.Context, userId int, expense RecurringExpense) (RecurringExpense, error) {
	if r.Err != nil {
		return RecurringExpense{}, r.Err
	}
	idx := r.find(userId, expense.Uid)
	if idx < 0 {
		return RecurringExpense{}, ErrExpenseNotFound
	}
	expense.Id = r.expenses[idx].expense.Id
	r.expenses[idx].expense = expense
	return expense, nil
}

func (r *RepositoryStub) DeleteExpense(_ context.Context, userId int, uid uuid.UUID) error {
	if r.Err != nil {
		return r.Err
	}
	idx := r.find(userId, uid)
	if idx < 0 {
		return ErrExpenseNotFound
	}
	r.expenses = slices.Delete(r.expenses, idx, idx+1)
	return nil
}

func (r *RepositoryStub) ListCategories(_ context.Context, userId int) ([]Category, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return slices.Clone(r.categories[userId]), nil
}

func (r *RepositoryStub) StoreCategory(_ context.Context, userId int, category Category) (Category, error) {
	if r.Err != nil {
		return Category{}, r.Err
	}
	r.nextCategoryId++
	category.Id = r.nextCategoryId
	r.categories[userId] = append(r.categories[userId], category)
	return category, nil
}

func (r *RepositoryStub) find(userId int, uid uuid.UUID) int {
	return slices.IndexFunc(r.expenses, func(s storedExpense) bool {
		return s.userId == userId && s.expense.Uid == uid
	})
}
