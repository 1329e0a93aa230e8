package catalog

// Category defaults. A manifest may declare its category explicitly;
// otherwise the package name is matched against the known sets below,
// falling back to "process".
const (
	CategoryRole        = "role"
	CategoryProcess     = "process"
	CategoryEnforcement = "enforcement"
	CategoryMeta        = "meta"
)

var categoryNames = map[string]string{
	// role packages: the agent acts as a persona
	"architect": CategoryRole,
	"dev":       CategoryRole,
	"reviewer":  CategoryRole,
	"review":    CategoryRole,
	"pm":        CategoryRole,
	"qa":        CategoryRole,
	"debugger":  CategoryRole,

	// enforcement packages: guardrails and policy
	"guard":      CategoryEnforcement,
	"gatekeeper": CategoryEnforcement,
	"policy":     CategoryEnforcement,
	"safety":     CategoryEnforcement,

	// meta packages: operate on the toolchain itself
	"meta":      CategoryMeta,
	"bootstrap": CategoryMeta,
	"installer": CategoryMeta,
}

func resolveCategory(explicit, name string) string {
	switch explicit {
	case CategoryRole, CategoryProcess, CategoryEnforcement, CategoryMeta:
		return explicit
	}
	if cat, ok := categoryNames[name]; ok {
		return cat
	}
	return CategoryProcess
}
