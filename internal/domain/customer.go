package domain

// Customer is an end-user identity owned by the chat service.
type Customer struct {
	UID    string
	Name   string
	Email  string
	Status string
}
