package storage

// Entry is one timeline record. Field order defines the key order of the
// persisted JSON object.
type Entry struct {
	Username string `json:"username" db:"username"`
	Time     string `json:"time" db:"time"`
	Avatar   string `json:"avatar" db:"avatar"`
	Image    string `json:"image" db:"image"`
}
