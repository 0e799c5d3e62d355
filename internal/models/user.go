package models

// User is the directory's record of a user. Handles are stable, unique and
// lowercase alphanumeric.
type User struct {
	ID       int64  `json:"u_id,string"`
	Handle   string `json:"handle_str"`
	Elevated bool   `json:"-"`
}
