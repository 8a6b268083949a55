package mysql

// WithoutWhere and WithWhere are phantom type-state markers: UpdateFrom and
// DeleteFrom return the WithoutWhere state and Where returns the WithWhere
// state. Exec is declared for both states, so a missing WHERE clause is not
// a compile error; build() reports it at run time as ErrWhereRequired.
type WithoutWhere struct{}
type WithWhere struct{}

// WhereState constrains UpdateBuilder/DeleteBuilder's type parameter to
// exactly these two states.
type WhereState interface {
	WithWhere | WithoutWhere
}
