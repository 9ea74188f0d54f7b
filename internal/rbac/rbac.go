package rbac

type Role string
type Action string

const (
	RoleAssistant Role = "assistant"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionImport  Action = "import"
	ActionBilling Action = "billing"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAgent:
		return action == ActionRead || action == ActionWrite || action == ActionImport || action == ActionBilling
	case RoleAssistant:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAssistant, RoleAgent, RoleAdmin:
		return Role(role)
	default:
		return RoleAssistant
	}
}
