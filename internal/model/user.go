package model

// User is a task store identity: a stable id plus the canonical display name.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
