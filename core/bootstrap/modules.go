package bootstrap

import "context"

// Seeder loads reference data once infrastructure is ready.
type Seeder interface {
	Seed(ctx context.Context, infra *Result) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, infra *Result) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, infra *Result) error {
	return f(ctx, infra)
}

// NamedSeeder labels a seeder for startup logs.
type NamedSeeder struct {
	Name string
	Seeder
}
