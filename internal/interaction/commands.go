package interaction

// Slash command names.
const (
	CommandAdd      = "add"
	CommandRemove   = "remove"
	CommandClose    = "close"
	CommandRename   = "rename"
	CommandReady    = "ready"
	CommandSetup    = "setup"
	CommandReset    = "reset"
	CommandTeardown = "teardown"
)

// Command option names.
const (
	OptionUser   = "user"
	OptionReason = "reason"
	OptionName   = "name"
)

// OptionKind is the value type of a command option.
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionUserRef
)

// OptionSpec declares one command argument.
type OptionSpec struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
}

// CommandSpec declares one slash command.
type CommandSpec struct {
	Name        string
	Description string
	Options     []OptionSpec
	// AdminOnly hides the command from members without administrator rights.
	AdminOnly bool
}

// Commands lists every slash command the router handles.
var Commands = []CommandSpec{
	{
		Name:        CommandAdd,
		Description: "Add a user to this ticket",
		Options:     []OptionSpec{{Name: OptionUser, Description: "User to add", Kind: OptionUserRef, Required: true}},
	},
	{
		Name:        CommandRemove,
		Description: "Remove a user from this ticket",
		Options:     []OptionSpec{{Name: OptionUser, Description: "User to remove", Kind: OptionUserRef, Required: true}},
	},
	{
		Name:        CommandClose,
		Description: "Close this ticket",
		Options:     []OptionSpec{{Name: OptionReason, Description: "Close reason", Kind: OptionString}},
	},
	{
		Name:        CommandRename,
		Description: "Rename this ticket channel",
		Options:     []OptionSpec{{Name: OptionName, Description: "New channel name", Kind: OptionString, Required: true}},
	},
	{
		Name:        CommandReady,
		Description: "Ask the ticket creator to rate your help",
		Options:     []OptionSpec{{Name: OptionUser, Description: "Ticket creator", Kind: OptionUserRef, Required: true}},
	},
	{Name: CommandSetup, Description: "Create the ticket channels, categories and panel", AdminOnly: true},
	{Name: CommandReset, Description: "Delete every ticket record", AdminOnly: true},
	{Name: CommandTeardown, Description: "Delete the ticket channels and categories", AdminOnly: true},
}
