package user

// User represents a user entity in the system.
type User struct {
	ID    int64  // ID is assigned by the store and never reused
	Name  string // Name is the full name of the user
	Email string // Email is the unique email address of the user
}

// Seeds are the users inserted when the store is first found empty.
var Seeds = []User{
	{Name: "Ivan Ivanov", Email: "ivan@example.com"},
	{Name: "Petr Petrov", Email: "petr@example.com"},
	{Name: "Anna Sidorova", Email: "anna@example.com"},
}
