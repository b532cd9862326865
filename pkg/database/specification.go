package database

// Specification describes a database and is able to create it.
type Specification interface {
	Create() (Database, error)
}
