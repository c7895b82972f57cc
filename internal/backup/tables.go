package backup

// Table is one exported table
type Table struct {
	Name string
	// TenantScoped tables are filtered by the tenant column on export and
	// checked against the manifest tenant on restore
	TenantScoped bool
}

const (
	// TenantColumn holds tenant identity in every tenant-scoped table
	TenantColumn = "tenant_id"
	// ConflictKey is the primary identity used for restore upserts
	ConflictKey = "id"
)

// DefaultTables is the fixed export set. system_settings is shared across
// tenants and is exported unfiltered.
var DefaultTables = []Table{
	{Name: "customers", TenantScoped: true},
	{Name: "services", TenantScoped: true},
	{Name: "staff", TenantScoped: true},
	{Name: "appointments", TenantScoped: true},
	{Name: "invoices", TenantScoped: true},
	{Name: "payments", TenantScoped: true},
	{Name: "messages", TenantScoped: true},
	{Name: "ai_conversations", TenantScoped: true},
	{Name: "system_settings", TenantScoped: false},
}
