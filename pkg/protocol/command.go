package protocol

// Command is a single instruction of a page mutation script.
//
// Indent is the nesting depth of the command within a subtree definition,
// in steps of two. Name is the operation ("add", "set", "remove", "clean",
// "get", ...) or empty for a control definition line inside an "add"
// subtree. Values are positional arguments, Attrs are named arguments, and
// Commands carries a nested subtree for "add".
type Command struct {
	Indent   int               `json:"indent"`
	Name     string            `json:"name,omitempty"`
	Values   []string          `json:"values,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Lines    []string          `json:"lines,omitempty"`
	Commands []*Command        `json:"commands,omitempty"`
}

// NewCommand builds a named command with positional values only.
func NewCommand(name string, values ...string) *Command {
	return &Command{Name: name, Values: values}
}
