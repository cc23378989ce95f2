package model

// User is a registered account.
//
// Passwords are stored exactly as submitted. There is no hashing: this is a
// single-author personal site and the account system only gates who may post.
// Users are immutable after registration and there is no deletion path.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"` // unique, case-sensitive
	Password string `json:"password"`
}

// Session maps an issued bearer token to the username it authenticates.
// Sessions never expire and are never revoked; one user may hold many.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
