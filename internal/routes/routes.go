package routes

const (
	// Entry page; also fixes the callback base from the Host header.
	Home = "/"

	// Collection endpoints
	Start    = "/start"
	Callback = "/callback"
)
