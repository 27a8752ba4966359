package engine

import (
	"context"

	"github.com/lazypower/halflife/internal/store"
	"github.com/sirupsen/logrus"
)

// RegisterUserInput creates or renames a user.
type RegisterUserInput struct {
	ID   string `validate:"required,max=64"`
	Name string `validate:"max=200"`
}

// RegisterDrinkInput creates or updates a catalog drink.
type RegisterDrinkInput struct {
	ID         string   `validate:"required,max=64"`
	Name       string   `validate:"required,max=200"`
	CaffeineMg *float64 `validate:"required,gte=0"`
}

// RegisterUser upserts a user.
func (e *Engine) RegisterUser(ctx context.Context, in RegisterUserInput) (*store.User, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, &ValidationError{Fields: validationFields(err)}
	}
	u := &store.User{ID: in.ID, Name: in.Name}
	if err := e.DB.Q().UpsertUser(ctx, u); err != nil {
		return nil, classify("register user", err)
	}
	e.Log.WithField("user_id", u.ID).Info("user registered")
	return u, nil
}

// RegisterDrink upserts a drink.
func (e *Engine) RegisterDrink(ctx context.Context, in RegisterDrinkInput) (*store.Drink, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, &ValidationError{Fields: validationFields(err)}
	}
	d := &store.Drink{ID: in.ID, Name: in.Name, CaffeineMg: *in.CaffeineMg}
	if err := e.DB.Q().UpsertDrink(ctx, d); err != nil {
		return nil, classify("register drink", err)
	}
	e.Log.WithFields(logrus.Fields{"drink_id": d.ID, "caffeine_mg": d.CaffeineMg}).Info("drink registered")
	return d, nil
}

// CheckUser returns a NotFoundError when the user is not registered.
func (e *Engine) CheckUser(ctx context.Context, userID string) error {
	return classify("check user", e.requireUser(ctx, e.DB.Q(), userID))
}
