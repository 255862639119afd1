package owners

import "time"

// Owner es el perfil PetOwner. UserID lo vincula a la cuenta con rol owner (opcional).
type Owner struct {
	ID     string
	UserID string

	Firstname  string
	Lastname   string
	Email      string
	ContactNum string
	ZipcodeID  string
	Barangay   string
	Zone       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o Owner) FullName() string {
	return o.Firstname + " " + o.Lastname
}
