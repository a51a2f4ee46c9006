package store

// Tables holds resolved table names. Non-production environments prefix every
// table with dev_ so a shared database can carry both datasets; the prefix is a
// naming convention only, never a behavioral fork.
type Tables struct {
	Tenants           string
	UserProfiles      string
	Leads             string
	Comments          string
	ActivityLogs      string
	Companies         string
	Executives        string
	TenantPreferences string
	PasswordResets    string
}

func ResolveTables(production bool) Tables {
	return Tables{
		Tenants:           tableName("tenants", production),
		UserProfiles:      tableName("user_profiles", production),
		Leads:             tableName("leads", production),
		Comments:          tableName("comments", production),
		ActivityLogs:      tableName("activity_logs", production),
		Companies:         tableName("companies", production),
		Executives:        tableName("executives", production),
		TenantPreferences: tableName("tenant_preferences", production),
		PasswordResets:    tableName("password_resets", production),
	}
}

func tableName(base string, production bool) string {
	if production {
		return base
	}
	return "dev_" + base
}
