package domain

import "context"

// User management is owned by the surrounding CRUD layer; the ledger only
// needs to know that an acting user exists.
type UserRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
}
