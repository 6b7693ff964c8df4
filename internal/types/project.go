package types

type Category string

const (
	CategorySalesAutomation  Category = "ai-sales-automation"
	CategorySupportOps       Category = "ai-support-ops"
	CategoryMarketingSystems Category = "ai-marketing-systems"
	CategoryDevtoolsAgents   Category = "devtools-agents"
)

func Categories() []Category {
	return []Category{
		CategorySalesAutomation,
		CategorySupportOps,
		CategoryMarketingSystems,
		CategoryDevtoolsAgents,
	}
}

type DemoType string

const (
	DemoTypeVideo DemoType = "video"
	DemoTypeLive  DemoType = "live"
)

type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusPaused   ProjectStatus = "paused"
	ProjectStatusRetired  ProjectStatus = "retired"
	ProjectStatusDisabled ProjectStatus = "disabled"
)

type TickStatus string

const (
	TickStatusRunning TickStatus = "running"
	TickStatusDone    TickStatus = "done"
)

const (
	ExitNormal  int = 0
	ExitErrored int = 1
)
