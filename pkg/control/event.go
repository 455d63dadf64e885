package control

// Event is a user interaction delivered by the host, resolved against the
// page index so handlers get the live control instance.
type Event struct {
	Target  string
	Name    string
	Data    string
	Control *Control
	Page    *Page
}
